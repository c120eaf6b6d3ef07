package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ──────────────────── Collections ────────────────────

const (
	CollectionChannels         = "channels"
	CollectionSerials          = "serials"
	CollectionEpisodes         = "episodes"
	CollectionNotices          = "notices"
	CollectionAds              = "ads"
	CollectionPremiumPurchases = "premiumpurchases"
	CollectionAppUpdates       = "appupdates"
)

// ──────────────────── Enums ────────────────────

type SerialStatus string

const (
	SerialActive   SerialStatus = "active"
	SerialInactive SerialStatus = "inactive"
)

type NoticePriority string

const (
	PriorityLow    NoticePriority = "low"
	PriorityMedium NoticePriority = "medium"
	PriorityHigh   NoticePriority = "high"
)

// ──────────────────── Channel ────────────────────

type Channel struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	LogoURL   string             `json:"logo_url" bson:"logo_url"`
	IsActive  bool               `json:"is_active" bson:"is_active"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type ChannelCreate struct {
	Name     string `json:"name" validate:"required"`
	LogoURL  string `json:"logo_url"`
	IsActive *bool  `json:"is_active"`
}

type ChannelUpdate struct {
	ID       string  `json:"id"`
	DocID    string  `json:"_id"`
	Name     *string `json:"name" validate:"omitnil,min=1"`
	LogoURL  *string `json:"logo_url"`
	IsActive *bool   `json:"is_active"`
}

// ──────────────────── Serial ────────────────────

// Serial is the stored shape. API consumers see mapper.SerialView.
type Serial struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Image       string             `bson:"image"`
	ChannelID   string             `bson:"channel_id"`
	Status      SerialStatus       `bson:"status"`
	Views       int64              `bson:"views"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type SerialCreate struct {
	Name        string       `json:"name" validate:"required"`
	Description string       `json:"description"`
	ChannelID   string       `json:"channelId" validate:"required"`
	ImageURL    string       `json:"imageUrl"`
	Status      SerialStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

type SerialUpdate struct {
	ID          string        `json:"id"`
	Name        *string       `json:"name" validate:"omitnil,min=1"`
	Description *string       `json:"description"`
	ChannelID   *string       `json:"channelId" validate:"omitnil,min=1"`
	ImageURL    *string       `json:"imageUrl"`
	Status      *SerialStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ──────────────────── Episode ────────────────────

type Episode struct {
	ID            string    `json:"_id" bson:"_id"`
	VideoURL      string    `json:"video_url" bson:"video_url"`
	EpisodeNumber *int      `json:"episode_number" bson:"episode_number"`
	ReleaseDate   time.Time `json:"release_date" bson:"release_date"`
	SerialID      string    `json:"serial_id" bson:"serial_id"`
}

// EpisodeCreate keeps episode_number raw: clients send it as a number, a
// numeric string, an empty string or null.
type EpisodeCreate struct {
	VideoURL      string          `json:"video_url" validate:"required"`
	EpisodeNumber json.RawMessage `json:"episode_number"`
	ReleaseDate   string          `json:"release_date"`
	SerialID      string          `json:"serial_id" validate:"required"`
}

type EpisodeUpdate struct {
	ID            string          `json:"id"`
	VideoURL      *string         `json:"video_url"`
	EpisodeNumber json.RawMessage `json:"episode_number"`
	ReleaseDate   *string         `json:"release_date"`
	SerialID      *string         `json:"serial_id"`
}

// ──────────────────── Notice ────────────────────

type Notice struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title     string             `json:"title" bson:"title"`
	Message   string             `json:"message" bson:"message"`
	Date      string             `json:"date" bson:"date"`
	Priority  NoticePriority     `json:"priority" bson:"priority"`
	IsActive  bool               `json:"is_active" bson:"is_active"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type NoticeCreate struct {
	Title    string         `json:"title" validate:"required"`
	Message  string         `json:"message" validate:"required"`
	Date     string         `json:"date"`
	Priority NoticePriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsActive *bool          `json:"is_active"`
}

type NoticeUpdate struct {
	ID       string          `json:"id"`
	DocID    string          `json:"_id"`
	Title    *string         `json:"title" validate:"omitnil,min=1"`
	Message  *string         `json:"message" validate:"omitnil,min=1"`
	Date     *string         `json:"date"`
	Priority *NoticePriority `json:"priority" validate:"omitempty,oneof=low medium high"`
	IsActive *bool           `json:"is_active"`
}

// ──────────────────── AdConfig ────────────────────

type AdConfig struct {
	ID               primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	InterstitialAdID string             `json:"interstitial_ad_id" bson:"interstitial_ad_id"`
	BannerAdID       string             `json:"banner_ad_id" bson:"banner_ad_id"`
	NativeAdID       string             `json:"native_ad_id" bson:"native_ad_id"`
	AppOpenAdID      string             `json:"app_open_ad_id" bson:"app_open_ad_id"`
	RewardAdID       string             `json:"reward_ad_id" bson:"reward_ad_id"`
	IsAdsEnabled     bool               `json:"is_ads_enabled" bson:"is_ads_enabled"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type AdConfigUpdate struct {
	ID               string  `json:"id"`
	InterstitialAdID *string `json:"interstitial_ad_id"`
	BannerAdID       *string `json:"banner_ad_id"`
	NativeAdID       *string `json:"native_ad_id"`
	AppOpenAdID      *string `json:"app_open_ad_id"`
	RewardAdID       *string `json:"reward_ad_id"`
	IsAdsEnabled     *bool   `json:"is_ads_enabled"`
}
