package model

import (
	"time"
)

// Review 买家评价（一条评价只属于一个工厂，可选关联订单）
// 五个维度评分在上游校验为 1-5，聚合时仍需容忍越界数据
type Review struct {
	ID                  uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID" json:"id"`
	FactoryID           uint64    `gorm:"column:factory_id;type:bigint;not null;index;comment:关联工厂ID" json:"factory_id"`
	OrderID             *uint64   `gorm:"column:order_id;type:bigint;comment:关联订单ID" json:"order_id,omitempty"`
	RatingOverall       int       `gorm:"column:rating_overall;type:smallint;not null;comment:综合评分" json:"rating_overall"`
	RatingCommunication int       `gorm:"column:rating_communication;type:smallint;not null;comment:沟通评分" json:"rating_communication"`
	RatingQuality       int       `gorm:"column:rating_quality;type:smallint;not null;comment:质量评分" json:"rating_quality"`
	RatingLeadTime      int       `gorm:"column:rating_lead_time;type:smallint;not null;comment:交期评分" json:"rating_lead_time"`
	RatingService       int       `gorm:"column:rating_service;type:smallint;not null;comment:服务评分" json:"rating_service"`
	Comment             *string   `gorm:"column:comment;type:text;comment:评价内容" json:"comment,omitempty"`
	IsVerifiedPurchase  bool      `gorm:"column:is_verified_purchase;type:boolean;default:false;comment:是否已验证采购" json:"is_verified_purchase"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间" json:"created_at"`
}

// Ratings 按固定顺序返回五个维度评分
func (r Review) Ratings() [5]int {
	return [5]int{r.RatingOverall, r.RatingCommunication, r.RatingQuality, r.RatingLeadTime, r.RatingService}
}

// WebinarVote 社区在直播/研讨会中给工厂的投票（0-100）
type WebinarVote struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID" json:"id"`
	FactoryID uint64    `gorm:"column:factory_id;type:bigint;not null;index;comment:关联工厂ID" json:"factory_id"`
	WebinarID uint64    `gorm:"column:webinar_id;type:bigint;not null;comment:关联研讨会ID" json:"webinar_id"`
	VoterID   uint64    `gorm:"column:voter_id;type:bigint;comment:投票人ID" json:"voter_id"`
	Value     float64   `gorm:"column:value;type:numeric(5,1);not null;comment:投票分值" json:"value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;comment:创建时间" json:"created_at"`
}

// ExpertReview 专家评审；只有已发布的评审参与专家分聚合
type ExpertReview struct {
	ID              uint64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID" json:"id"`
	FactoryID       uint64     `gorm:"column:factory_id;type:bigint;not null;index;comment:关联工厂ID" json:"factory_id"`
	ExpertID        uint64     `gorm:"column:expert_id;type:bigint;comment:专家ID" json:"expert_id"`
	InnovationScore float64    `gorm:"column:innovation_score;type:numeric(5,1);not null;comment:创新分" json:"innovation_score"`
	ManagementScore float64    `gorm:"column:management_score;type:numeric(5,1);not null;comment:管理分" json:"management_score"`
	PotentialScore  float64    `gorm:"column:potential_score;type:numeric(5,1);not null;comment:潜力分" json:"potential_score"`
	Summary         string     `gorm:"column:summary;type:text;not null;comment:评审摘要" json:"summary"`
	IsPublished     bool       `gorm:"column:is_published;type:boolean;default:false;index;comment:是否已发布" json:"is_published"`
	PublishedAt     *time.Time `gorm:"column:published_at;comment:发布时间" json:"published_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime;comment:创建时间" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime;comment:更新时间" json:"updated_at"`
}

// AIVerification 工厂 AI 核验记录（每个工厂至多一条当前记录）
// 指针字段为 nil 表示上游暂未产出该信号
type AIVerification struct {
	FactoryID            uint64    `gorm:"column:factory_id;primaryKey;autoIncrement:false;comment:工厂ID" json:"factory_id"`
	VerificationScore    *float64  `gorm:"column:verification_score;type:numeric(5,1);comment:AI核验分(0-100)" json:"verification_score"`
	CertificationCount   *int      `gorm:"column:certification_count;type:int;comment:认证数量" json:"certification_count"`
	DisputeRate          *float64  `gorm:"column:dispute_rate;type:numeric(6,2);comment:纠纷率(百分比)" json:"dispute_rate"`
	ResponseRate         *float64  `gorm:"column:response_rate;type:numeric(6,2);comment:响应率(百分比)" json:"response_rate"`
	SampleConversionRate *float64  `gorm:"column:sample_conversion_rate;type:numeric(6,2);comment:打样转化率(百分比)" json:"sample_conversion_rate"`
	ContentAssetCount    *int      `gorm:"column:content_asset_count;type:int;comment:内容资产数量" json:"content_asset_count"`
	VerifiedAt           time.Time `gorm:"column:verified_at;comment:核验时间" json:"verified_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime;comment:更新时间" json:"updated_at"`
}

func (Review) TableName() string         { return "reviews" }
func (WebinarVote) TableName() string    { return "webinar_votes" }
func (ExpertReview) TableName() string   { return "expert_reviews" }
func (AIVerification) TableName() string { return "ai_verifications" }
