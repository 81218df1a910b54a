package mirror

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roomchat/internal/model"
	"github.com/samber/lo"
)

// Field names shared by rows and partial updates.
const (
	FieldID          = "id"
	FieldLocalID     = "local_id"
	FieldUsername    = "username"
	FieldDisplayName = "display_name"
	FieldCreatedAt   = "created_at"
	FieldCreator     = "creator"
	FieldIsPublic    = "is_public"
	FieldContent     = "content"
	FieldRawContent  = "raw_content"
	FieldSender      = "sender"
	FieldUserID      = "user_id"
	FieldTimestamp   = "timestamp"
	FieldEditedAt    = "edited_at"
	FieldIsDeleted   = "is_deleted"
	FieldRoomID      = "room_id"
	FieldReadBy      = "read_by"
	FieldSenderID    = "sender_id"
	FieldRecipientID = "recipient_id"
	FieldIsRead      = "is_read"
)

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func userRow(u *model.User) Row {
	return Row{
		FieldID:          u.ID,
		FieldUsername:    u.Username,
		FieldDisplayName: u.DisplayName,
		FieldCreatedAt:   formatTime(u.CreatedAt),
	}
}

func roomRow(r *model.Room) Row {
	return Row{
		FieldID:        r.Code,
		FieldCreator:   r.Creator,
		FieldIsPublic:  r.IsPublic,
		FieldIsDeleted: false,
		FieldCreatedAt: formatTime(r.CreatedAt),
	}
}

func messageRow(m *model.Message) Row {
	var userID any
	if m.UserID != nil {
		userID = *m.UserID
	}
	return Row{
		FieldLocalID:    m.ID,
		FieldContent:    m.Content,
		FieldRawContent: m.RawContent,
		FieldSender:     m.Sender,
		FieldUserID:     userID,
		FieldTimestamp:  formatTime(m.CreatedAt),
		FieldEditedAt:   formatTimePtr(m.EditedAt),
		FieldIsDeleted:  m.IsDeleted(),
		FieldRoomID:     m.RoomCode,
		FieldReadBy:     m.ReadBy.Names(),
	}
}

func directRow(d *model.DirectMessage) Row {
	return Row{
		FieldLocalID:     d.ID,
		FieldContent:     d.Content,
		FieldRawContent:  d.RawContent,
		FieldSenderID:    d.SenderID,
		FieldRecipientID: d.RecipientID,
		FieldTimestamp:   formatTime(d.CreatedAt),
		FieldEditedAt:    formatTimePtr(d.EditedAt),
		FieldIsDeleted:   d.IsDeleted(),
		FieldIsRead:      d.IsRead,
	}
}

// pick keeps only the named fields of row; unknown names are ignored.
func pick(row Row, fields []string) Row {
	return lo.PickByKeys(row, fields)
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	case json.Number:
		n, _ := x.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return asInt64(v) != 0
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999"}

// asTime parses a remote timestamp. ok is false for absent or unparseable values.
func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// asStrings accepts a list or a JSON-encoded list.
func asStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		return lo.FilterMap(x, func(item any, _ int) (string, bool) {
			s := asString(item)
			return s, s != ""
		})
	case string:
		var out []string
		if err := json.Unmarshal([]byte(x), &out); err == nil {
			return out
		}
	}
	return nil
}
