package service

import (
	"context"
	"sync"

	"FactoryTrust/internal/interfaces"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// InlineTrigger 在写请求内同步重算；同一工厂的串行由 ScoreService 的分段锁保证
type InlineTrigger struct {
	recomputer interfaces.ScoreRecomputer
}

func NewInlineTrigger(recomputer interfaces.ScoreRecomputer) *InlineTrigger {
	return &InlineTrigger{recomputer: recomputer}
}

func (t *InlineTrigger) Trigger(ctx context.Context, factoryID uint64) error {
	_, err := t.recomputer.RecomputeFactoryScore(ctx, factoryID)
	return err
}

// QueueTrigger 异步重算。待算工厂记在 pending 集合里，channel 只用于唤醒 worker：
// 排队中的同一工厂只保留一份；正在重算时又有写入，当前轮结束后由同一 worker 再算一轮；
// pending 达到 maxPending 或已关闭时，在调用方 goroutine 内直接重算
type QueueTrigger struct {
	recomputer interfaces.ScoreRecomputer
	workers    int
	maxPending int
	logger     *logrus.Logger

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	mu      sync.Mutex
	order   []uint64
	pending map[uint64]struct{}
	running map[uint64]struct{}
	rerun   map[uint64]struct{}
	started bool
	closed  bool
}

// NewQueueTrigger 创建异步触发器，需另起 goroutine 调用 Run，退出前调用 Shutdown
func NewQueueTrigger(recomputer interfaces.ScoreRecomputer, workers, maxPending int, logger *logrus.Logger) *QueueTrigger {
	if workers <= 0 {
		workers = 1
	}
	if maxPending <= 0 {
		maxPending = 1024
	}
	return &QueueTrigger{
		recomputer: recomputer,
		workers:    workers,
		maxPending: maxPending,
		logger:     logger,
		wake:       make(chan struct{}, workers),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		pending:    make(map[uint64]struct{}),
		running:    make(map[uint64]struct{}),
		rerun:      make(map[uint64]struct{}),
	}
}

// Trigger 登记一次重算；正常情况下不等待执行结果
func (t *QueueTrigger) Trigger(ctx context.Context, factoryID uint64) error {
	t.mu.Lock()
	if _, ok := t.pending[factoryID]; ok {
		t.mu.Unlock()
		return nil
	}
	if _, ok := t.running[factoryID]; ok {
		t.rerun[factoryID] = struct{}{}
		t.mu.Unlock()
		return nil
	}
	if t.closed || len(t.pending) >= t.maxPending {
		closed := t.closed
		t.running[factoryID] = struct{}{}
		t.mu.Unlock()
		t.logger.WithFields(logrus.Fields{
			"factory_id": factoryID,
			"closed":     closed,
		}).Debug("异步队列不可用，改为同步重算")
		return t.recompute(ctx, factoryID)
	}
	t.pending[factoryID] = struct{}{}
	t.order = append(t.order, factoryID)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run 启动 worker；Shutdown 后排空 pending 再返回，ctx 取消时立即返回
func (t *QueueTrigger) Run(ctx context.Context) error {
	t.mu.Lock()
	t.started = true
	t.mu.Unlock()
	defer close(t.done)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < t.workers; i++ {
		g.Go(func() error {
			t.work(gctx)
			return nil
		})
	}
	t.logger.Infof("异步重算已启动，worker=%d", t.workers)
	err := g.Wait()
	t.logger.WithField("pending", t.Pending()).Info("异步重算已停止")
	return err
}

// Shutdown 停止接收新的排队（之后的触发改为同步重算），等待 worker 排空 pending
func (t *QueueTrigger) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	started := t.started
	t.mu.Unlock()
	t.quitOnce.Do(func() { close(t.quit) })

	if !started {
		t.work(ctx)
		return ctx.Err()
	}
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		t.logger.WithField("pending", t.Pending()).Warn("异步重算未能在超时前排空")
		return ctx.Err()
	}
}

// Pending 尚未开始的重算数
func (t *QueueTrigger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

func (t *QueueTrigger) work(ctx context.Context) {
	for ctx.Err() == nil {
		id, ok, stop := t.next()
		if stop {
			return
		}
		if ok {
			if err := t.recompute(ctx, id); err != nil {
				t.logger.WithError(err).WithField("factory_id", id).Warn("异步重算失败")
			}
			continue
		}
		select {
		case <-ctx.Done():
		case <-t.quit:
		case <-t.wake:
		}
	}
}

// next 取出下一个待算工厂；已关闭且 pending 为空时 stop=true
func (t *QueueTrigger) next() (id uint64, ok, stop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == 0 {
		return 0, false, t.closed
	}
	id, t.order = t.order[0], t.order[1:]
	delete(t.pending, id)
	t.running[id] = struct{}{}
	return id, true, false
}

// recompute 调用前 factoryID 已登记为 running
func (t *QueueTrigger) recompute(ctx context.Context, factoryID uint64) error {
	for {
		_, err := t.recomputer.RecomputeFactoryScore(ctx, factoryID)
		t.mu.Lock()
		if _, again := t.rerun[factoryID]; again && ctx.Err() == nil {
			delete(t.rerun, factoryID)
			t.mu.Unlock()
			if err != nil {
				t.logger.WithError(err).WithField("factory_id", factoryID).Warn("重算失败，按新写入再算一轮")
			}
			continue
		}
		delete(t.rerun, factoryID)
		delete(t.running, factoryID)
		t.mu.Unlock()
		return err
	}
}
