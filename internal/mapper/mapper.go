// Package mapper translates between stored documents and the shapes API
// consumers expect. Every function here is pure.
package mapper

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/JustinTDCT/SerialDesk/internal/models"
)

// SerialView carries the stored serial fields plus the display aliases the
// consumer app reads (name, imageUrl, channelId) and the joined channel.
type SerialView struct {
	ID          primitive.ObjectID  `json:"_id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	ChannelID   string              `json:"channel_id"`
	Status      models.SerialStatus `json:"status"`
	Views       int64               `json:"views"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`

	Name         string          `json:"name"`
	ImageURL     string          `json:"imageUrl"`
	ChannelAlias string          `json:"channelId"`
	Channel      *models.Channel `json:"channel"`
}

// ChannelIndex looks channels up by their hex id.
type ChannelIndex map[string]*models.Channel

func IndexChannels(channels []models.Channel) ChannelIndex {
	idx := make(ChannelIndex, len(channels))
	for i := range channels {
		idx[channels[i].ID.Hex()] = &channels[i]
	}
	return idx
}

func (idx ChannelIndex) Lookup(id string) *models.Channel {
	if idx == nil || id == "" {
		return nil
	}
	return idx[strings.ToLower(id)]
}

// ──────────────────── Serial: storage -> display ────────────────────

func ToSerialView(s models.Serial, channel *models.Channel) SerialView {
	return SerialView{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		Image:       s.Image,
		ChannelID:   s.ChannelID,
		Status:      s.Status,
		Views:       s.Views,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,

		Name:         s.Title,
		ImageURL:     s.Image,
		ChannelAlias: s.ChannelID,
		Channel:      channel,
	}
}

func ToSerialViews(serials []models.Serial, channels ChannelIndex) []SerialView {
	out := make([]SerialView, 0, len(serials))
	for _, s := range serials {
		out = append(out, ToSerialView(s, channels.Lookup(s.ChannelID)))
	}
	return out
}

// ──────────────────── Serial: display -> storage ────────────────────

// SerialFromCreate builds the document to insert. Timestamps are left for the
// caller to stamp.
func SerialFromCreate(in models.SerialCreate) models.Serial {
	status := in.Status
	if status == "" {
		status = models.SerialActive
	}
	return models.Serial{
		Title:       in.Name,
		Description: in.Description,
		Image:       in.ImageURL,
		ChannelID:   in.ChannelID,
		Status:      status,
	}
}

// SerialUpdateFields returns the storage fields named by a partial update.
func SerialUpdateFields(in models.SerialUpdate) bson.M {
	set := bson.M{}
	if in.Name != nil {
		set["title"] = *in.Name
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.ImageURL != nil {
		set["image"] = *in.ImageURL
	}
	if in.ChannelID != nil {
		set["channel_id"] = *in.ChannelID
	}
	if in.Status != nil {
		set["status"] = *in.Status
	}
	return set
}

// ──────────────────── Generic documents ────────────────────

// Document converts a schemaless document into plain maps, slices and
// time.Time values so it encodes as ordinary JSON.
func Document(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = value(v)
	}
	return out
}

func Documents(docs []bson.M) []map[string]any {
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, Document(d))
	}
	return out
}

func value(v any) any {
	switch t := v.(type) {
	case bson.M:
		return Document(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = value(e.Value)
		}
		return m
	case bson.A:
		arr := make([]any, 0, len(t))
		for _, e := range t {
			arr = append(arr, value(e))
		}
		return arr
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}
