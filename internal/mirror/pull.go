package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/metrics"
	"github.com/roomchat/internal/model"
)

// TableReport counts the outcome of importing one table.
type TableReport struct {
	Imported int `json:"imported"`
	Linked   int `json:"linked"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
	Deleted  int `json:"deleted"`
}

// Report is the result of Pull, keyed by table name.
type Report map[string]*TableReport

func (r Report) table(name string) *TableReport {
	t, ok := r[name]
	if !ok {
		t = &TableReport{}
		r[name] = t
	}
	return t
}

type outcome int

const (
	outcomeImported outcome = iota
	outcomeLinked
	outcomeExisting
	outcomeDeleted
)

func (o outcome) String() string {
	switch o {
	case outcomeImported:
		return "imported"
	case outcomeLinked:
		return "linked"
	case outcomeDeleted:
		return "deleted"
	default:
		return "existing"
	}
}

// Pull imports remote records missing locally. Messages are matched first by
// remote id, then by the local id they were pushed with; only records matching
// neither are inserted, so repeated pulls never duplicate. A failing record is
// logged and skipped. Rooms tombstoned by a deletion are not imported, and
// neither are their messages. The returned error joins per-table select failures.
func (s *Syncer) Pull(ctx context.Context) (Report, error) {
	defer logger.DeferLogDuration("mirror.Pull", time.Now())()
	report := Report{}
	if s.remote == nil {
		return report, nil
	}

	var errs []error
	deleted := map[string]struct{}{}
	for _, table := range Tables {
		tr := report.table(table)
		records, err := s.remote.Select(ctx, table)
		if err != nil {
			errs = append(errs, fmt.Errorf("mirror.Pull select %s: %w", table, err))
			continue
		}
		for _, rec := range records {
			out, err := s.importRecord(ctx, table, rec, deleted)
			if err != nil {
				tr.Skipped++
				metrics.MirrorPulled.WithLabelValues(table, "skipped").Inc()
				logger.Warnf("mirror pull skip %s id=%s: %v", table, rec.ID, err)
				continue
			}
			metrics.MirrorPulled.WithLabelValues(table, out.String()).Inc()
			switch out {
			case outcomeImported:
				tr.Imported++
			case outcomeLinked:
				tr.Linked++
			case outcomeExisting:
				tr.Existing++
			case outcomeDeleted:
				tr.Deleted++
			}
		}
		logger.Infof("mirror pull %s: imported=%d linked=%d existing=%d skipped=%d deleted=%d",
			table, tr.Imported, tr.Linked, tr.Existing, tr.Skipped, tr.Deleted)
	}
	return report, errors.Join(errs...)
}

// importRecord imports one record. deleted collects the codes of tombstoned
// rooms; rooms are pulled before messages so it is complete by then.
func (s *Syncer) importRecord(ctx context.Context, table string, rec Record, deleted map[string]struct{}) (outcome, error) {
	switch table {
	case TableUsers:
		return s.importUser(ctx, rec)
	case TableRooms:
		return s.importRoom(ctx, rec, deleted)
	case TableMessages:
		return s.importMessage(ctx, rec, deleted)
	case TableDirectMessages:
		return s.importDirect(ctx, rec)
	}
	return 0, ValidTable(table)
}

func (s *Syncer) timeOrNow(v any) time.Time {
	if t, ok := asTime(v); ok {
		return t
	}
	return s.now()
}

func (s *Syncer) importUser(ctx context.Context, rec Record) (outcome, error) {
	id := asInt64(rec.Row[FieldID])
	if id == 0 {
		id = asInt64(rec.ID)
	}
	username := asString(rec.Row[FieldUsername])
	if id <= 0 || username == "" {
		return 0, fmt.Errorf("%w: user without id or username", model.ErrInvalidInput)
	}
	if _, err := s.store.GetUser(ctx, id); err == nil {
		return outcomeExisting, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	display := asString(rec.Row[FieldDisplayName])
	if display == "" {
		display = username
	}
	u := &model.User{
		ID:          id,
		Username:    username,
		DisplayName: display,
		AvatarRef:   model.DefaultAvatar,
		Settings:    model.DefaultSettings(),
		CreatedAt:   s.timeOrNow(rec.Row[FieldCreatedAt]),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

func (s *Syncer) importRoom(ctx context.Context, rec Record, deleted map[string]struct{}) (outcome, error) {
	code := asString(rec.Row[FieldID])
	if code == "" {
		code = rec.ID
	}
	if code == "" {
		return 0, fmt.Errorf("%w: room without code", model.ErrInvalidInput)
	}
	if asBool(rec.Row[FieldIsDeleted]) {
		deleted[code] = struct{}{}
		return outcomeDeleted, nil
	}
	if _, err := s.store.GetRoom(ctx, code); err == nil {
		return outcomeExisting, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	r := &model.Room{
		Code:      code,
		Creator:   asString(rec.Row[FieldCreator]),
		IsPublic:  asBool(rec.Row[FieldIsPublic]),
		CreatedAt: s.timeOrNow(rec.Row[FieldCreatedAt]),
	}
	if err := s.store.CreateRoom(ctx, r); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

func (s *Syncer) importMessage(ctx context.Context, rec Record, deleted map[string]struct{}) (outcome, error) {
	if _, err := s.store.GetMessageByRemoteID(ctx, rec.ID); err == nil {
		return outcomeExisting, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	room := asString(rec.Row[FieldRoomID])
	if _, ok := deleted[room]; ok {
		return outcomeDeleted, nil
	}
	if localID := asInt64(rec.Row[FieldLocalID]); localID > 0 {
		m, err := s.store.GetMessage(ctx, localID)
		switch {
		case err == nil && m.RoomCode == room && (m.RemoteID == "" || m.RemoteID == rec.ID):
			if err := s.store.SetMessageRemoteID(ctx, m.ID, rec.ID); err != nil {
				return 0, err
			}
			return outcomeLinked, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return 0, err
		}
	}

	sender := asString(rec.Row[FieldSender])
	if room == "" || sender == "" {
		return 0, fmt.Errorf("%w: message without room or sender", model.ErrInvalidInput)
	}
	var editedAt *time.Time
	if t, ok := asTime(rec.Row[FieldEditedAt]); ok {
		editedAt = &t
	}
	m := &model.Message{
		RoomCode:  room,
		Sender:    sender,
		UserID:    s.existingUser(ctx, asInt64(rec.Row[FieldUserID])),
		CreatedAt: s.timeOrNow(rec.Row[FieldTimestamp]),
		Body: model.Body{
			Content:    asString(rec.Row[FieldContent]),
			RawContent: asString(rec.Row[FieldRawContent]),
			EditedAt:   editedAt,
			State:      model.StateOf(asBool(rec.Row[FieldIsDeleted]), editedAt),
		},
		ReadBy:   model.NewReadSet(asStrings(rec.Row[FieldReadBy])...),
		RemoteID: rec.ID,
	}
	m.ReadBy.Add(sender)
	if m.IsDeleted() {
		m.Content = model.DeletedPlaceholder
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

func (s *Syncer) importDirect(ctx context.Context, rec Record) (outcome, error) {
	if _, err := s.store.GetDirectMessageByRemoteID(ctx, rec.ID); err == nil {
		return outcomeExisting, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return 0, err
	}

	senderID := asInt64(rec.Row[FieldSenderID])
	recipientID := asInt64(rec.Row[FieldRecipientID])
	if localID := asInt64(rec.Row[FieldLocalID]); localID > 0 {
		d, err := s.store.GetDirectMessage(ctx, localID)
		switch {
		case err == nil && d.SenderID == senderID && d.RecipientID == recipientID && (d.RemoteID == "" || d.RemoteID == rec.ID):
			if err := s.store.SetDirectMessageRemoteID(ctx, d.ID, rec.ID); err != nil {
				return 0, err
			}
			return outcomeLinked, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return 0, err
		}
	}

	if senderID <= 0 || recipientID <= 0 {
		return 0, fmt.Errorf("%w: direct message without participants", model.ErrInvalidInput)
	}
	var editedAt *time.Time
	if t, ok := asTime(rec.Row[FieldEditedAt]); ok {
		editedAt = &t
	}
	d := &model.DirectMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		CreatedAt:   s.timeOrNow(rec.Row[FieldTimestamp]),
		Body: model.Body{
			Content:    asString(rec.Row[FieldContent]),
			RawContent: asString(rec.Row[FieldRawContent]),
			EditedAt:   editedAt,
			State:      model.StateOf(asBool(rec.Row[FieldIsDeleted]), editedAt),
		},
		IsRead:   asBool(rec.Row[FieldIsRead]),
		RemoteID: rec.ID,
	}
	if d.IsDeleted() {
		d.Content = model.DeletedPlaceholder
	}
	if err := s.store.CreateDirectMessage(ctx, d); err != nil {
		return 0, err
	}
	return outcomeImported, nil
}

// existingUser returns a pointer to id when that user exists locally.
func (s *Syncer) existingUser(ctx context.Context, id int64) *int64 {
	if id <= 0 {
		return nil
	}
	if _, err := s.store.GetUser(ctx, id); err != nil {
		return nil
	}
	return &id
}
