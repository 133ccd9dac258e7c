package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ogurasousui/ogs-worktime/internal/core/timetracking"
)

// sessionEditDocument は session_edits コレクションのドキュメントです。
type sessionEditDocument struct {
	ID        bson.ObjectID         `bson:"_id,omitempty"`
	SessionID string                `bson:"session_id"`
	StaffID   string                `bson:"staff_id"`
	EditedBy  string                `bson:"edited_by"`
	Reason    string                `bson:"reason,omitempty"`
	Changes   []fieldChangeDocument `bson:"changes"`
	EditedAt  time.Time             `bson:"edited_at"`
}

type fieldChangeDocument struct {
	Field  string `bson:"field"`
	Before string `bson:"before"`
	After  string `bson:"after"`
}

type editCount struct {
	SessionID string `bson:"_id"`
	Count     int    `bson:"count"`
}

// AuditLog は勤怠修正の履歴を MongoDB に保存します。
type AuditLog struct {
	edits *mongo.Collection
}

// NewAuditLog は AuditLog を生成し、必要なインデックスを作成します。
func NewAuditLog(ctx context.Context, edits *mongo.Collection) (*AuditLog, error) {
	if _, err := edits.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "edited_at", Value: 1}}},
		{Keys: bson.D{{Key: "staff_id", Value: 1}, {Key: "edited_at", Value: -1}}},
	}); err != nil {
		return nil, fmt.Errorf("create session_edits indexes: %w", err)
	}

	return &AuditLog{edits: edits}, nil
}

// Record は修正記録を追加し、採番された ID を edit に設定します。
func (a *AuditLog) Record(ctx context.Context, edit *timetracking.SessionEdit) error {
	doc := toDocument(edit)
	res, err := a.edits.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert session edit: %w", err)
	}
	if id, ok := res.InsertedID.(bson.ObjectID); ok {
		edit.ID = id.Hex()
	}
	return nil
}

// CountBySessions はセッションごとの修正回数を返します。修正のないセッションは含みません。
func (a *AuditLog) CountBySessions(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	cursor, err := a.edits.Aggregate(ctx, countPipeline(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("aggregate session edits: %w", err)
	}

	var results []editCount
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode session edit counts: %w", err)
	}

	for _, r := range results {
		counts[r.SessionID] = r.Count
	}
	return counts, nil
}

// ListBySession はセッションの修正履歴を古い順に返します。
func (a *AuditLog) ListBySession(ctx context.Context, sessionID string) ([]*timetracking.SessionEdit, error) {
	cursor, err := a.edits.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "edited_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find session edits: %w", err)
	}

	var docs []sessionEditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode session edits: %w", err)
	}

	edits := make([]*timetracking.SessionEdit, 0, len(docs))
	for i := range docs {
		edits = append(edits, fromDocument(&docs[i]))
	}
	return edits, nil
}

func countPipeline(sessionIDs []string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"session_id": bson.M{"$in": sessionIDs}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$session_id"},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	}
}

func toDocument(edit *timetracking.SessionEdit) *sessionEditDocument {
	doc := &sessionEditDocument{
		SessionID: edit.SessionID,
		StaffID:   edit.StaffID,
		EditedBy:  edit.EditedBy,
		Reason:    edit.Reason,
		Changes:   make([]fieldChangeDocument, 0, len(edit.Changes)),
		EditedAt:  edit.EditedAt.UTC(),
	}
	if id, err := bson.ObjectIDFromHex(edit.ID); err == nil {
		doc.ID = id
	}
	for _, c := range edit.Changes {
		doc.Changes = append(doc.Changes, fieldChangeDocument(c))
	}
	return doc
}

func fromDocument(doc *sessionEditDocument) *timetracking.SessionEdit {
	edit := &timetracking.SessionEdit{
		ID:        doc.ID.Hex(),
		SessionID: doc.SessionID,
		StaffID:   doc.StaffID,
		EditedBy:  doc.EditedBy,
		Reason:    doc.Reason,
		Changes:   make([]timetracking.FieldChange, 0, len(doc.Changes)),
		EditedAt:  doc.EditedAt.UTC(),
	}
	for _, c := range doc.Changes {
		edit.Changes = append(edit.Changes, timetracking.FieldChange(c))
	}
	return edit
}
