// Package domain defines the persistence models for tavern users, their
// per-day counters, stories and replies. These types are mapped with GORM and
// form the core data layer of the tavern backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// DateLayout is the calendar-day key used for daily state rows (UTC).
const DateLayout = "2006-01-02"

// Day returns the daily-state key for t, interpreted in UTC.
func Day(t time.Time) string { return t.UTC().Format(DateLayout) }

// User is the long-lived profile of a wallet address.
//
// Fields:
//   - Address: wallet address, primary key.
//   - WhiskeyPoints: spendable balance; never negative.
//   - LikedStoryIDs: stories the user chose to keep.
//   - ReceivedStoryIDs: stories ever delivered to the user.
//   - Intimacy: free-form affinity score maintained by the client.
//   - IsNewUser: true until the client acknowledges onboarding.
type User struct {
	Address          string    `json:"address"            gorm:"type:varchar(128);primaryKey"`
	WhiskeyPoints    int       `json:"whiskey_points"     gorm:"not null;default:0;check:whiskey_points >= 0"`
	LikedStoryIDs    StorySet  `json:"liked_story_ids"    gorm:"type:text;not null"`
	ReceivedStoryIDs StorySet  `json:"received_story_ids" gorm:"type:text;not null"`
	Intimacy         int       `json:"intimacy"           gorm:"not null;default:0"`
	IsNewUser        bool      `json:"is_new_user"        gorm:"not null;default:true"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// QuotaAction names a daily-limited action.
type QuotaAction string

const (
	ActionPublish QuotaAction = "publish"
	ActionFetch   QuotaAction = "fetch"
	ActionWhiskey QuotaAction = "whiskey"
)

// Column returns the user_states counter column for the action, or "" for
// an unknown action.
func (a QuotaAction) Column() string {
	switch a {
	case ActionPublish:
		return "published_count"
	case ActionFetch:
		return "received_count"
	case ActionWhiskey:
		return "whiskey_sent_count"
	}
	return ""
}

// UserState holds the counters of one user for one UTC day. Rows are created
// lazily and kept as history.
type UserState struct {
	Address          string    `json:"address"            gorm:"type:varchar(128);primaryKey"`
	Date             string    `json:"date"               gorm:"type:char(10);primaryKey"`
	PublishedCount   int       `json:"published_count"    gorm:"not null;default:0"`
	ReceivedCount    int       `json:"received_count"     gorm:"not null;default:0"`
	WhiskeySentCount int       `json:"whiskey_sent_count" gorm:"not null;default:0"`
	WhiskeyGranted   bool      `json:"-"                  gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserState.
func (UserState) TableName() string { return "user_states" }

// Count returns the counter tracked for the given action.
func (s UserState) Count(a QuotaAction) int {
	switch a {
	case ActionPublish:
		return s.PublishedCount
	case ActionFetch:
		return s.ReceivedCount
	case ActionWhiskey:
		return s.WhiskeySentCount
	}
	return 0
}

// Payment states of a story.
const (
	PaymentFree    = 0
	PaymentPending = 1
)

// Story is a short text published by a user. Only WhiskeyPoints and
// ContractAddress change after creation.
type Story struct {
	ID              string         `json:"id"                         gorm:"type:char(36);primaryKey"`
	AuthorAddress   string         `json:"author_address"             gorm:"type:varchar(128);not null;index:idx_author_stories"`
	Title           string         `json:"title"                      gorm:"type:varchar(255);not null;default:''"`
	Content         string         `json:"content"                    gorm:"type:text;not null"`
	WhiskeyPoints   int            `json:"whiskey_points"             gorm:"not null;default:0"`
	PaymentState    int            `json:"payment_state"              gorm:"not null;default:0;check:payment_state IN (0,1)"`
	ContractAddress *string        `json:"contract_address,omitempty" gorm:"type:varchar(128);index:idx_story_contract"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                          gorm:"index"`
}

// TableName returns the database table name for Story.
func (Story) TableName() string { return "stories" }

// Reply is a message attached to a story. ToAddress is the recipient whose
// inbox shows the reply; Unread flips when the recipient opens it.
type Reply struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	StoryID       string    `json:"story_id"       gorm:"type:char(36);not null;index:idx_story_replies,priority:1"`
	AuthorAddress string    `json:"author_address" gorm:"type:varchar(128);not null"`
	ToAddress     string    `json:"to_address"     gorm:"type:varchar(128);not null;index:idx_reply_inbox,priority:1"`
	Content       string    `json:"content"        gorm:"type:text;not null"`
	Unread        bool      `json:"unread"         gorm:"not null;default:true;index:idx_reply_inbox,priority:2"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_story_replies,priority:2"`
	UpdatedAt     time.Time `json:"updated_at"`

	Story Story `json:"-" gorm:"foreignKey:StoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reply.
func (Reply) TableName() string { return "story_replies" }

// Delivery records that a story was handed to a user on a given day.
type Delivery struct {
	Address   string    `gorm:"type:varchar(128);primaryKey"`
	Date      string    `gorm:"type:char(10);primaryKey"`
	StoryID   string    `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName returns the database table name for Delivery.
func (Delivery) TableName() string { return "daily_deliveries" }
