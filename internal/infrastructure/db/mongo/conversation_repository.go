package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aibutler/butler-api/internal/core/domain"
	"github.com/aibutler/butler-api/internal/core/ports"
)

type ConversationRepository struct {
	coll *mongo.Collection
	seq  *sequence
	now  func() time.Time
}

func NewConversationRepository(db *mongo.Database, seq *sequence) *ConversationRepository {
	return &ConversationRepository{coll: db.Collection(collectionConversations), seq: seq, now: time.Now}
}

type mongoConversation struct {
	ID        int64     `bson:"_id"`
	Business  string    `bson:"business"`
	Question  string    `bson:"question"`
	Answer    string    `bson:"answer"`
	CreatedAt time.Time `bson:"created_at"`
	UserID    *int64    `bson:"user_id"`
}

func (c mongoConversation) toDomain() *domain.Conversation {
	return &domain.Conversation{
		ID:        c.ID,
		Business:  c.Business,
		Question:  c.Question,
		Answer:    c.Answer,
		CreatedAt: c.CreatedAt.UTC(),
		UserID:    c.UserID,
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.seq.next(ctx, collectionConversations)
	if err != nil {
		return nil, err
	}

	doc := mongoConversation{
		ID:        id,
		Business:  conv.Business,
		Question:  conv.Question,
		Answer:    conv.Answer,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
		UserID:    conv.UserID,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) List(ctx context.Context, page ports.Page) ([]*domain.Conversation, error) {
	return r.find(ctx, bson.M{}, page)
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64, page ports.Page) ([]*domain.Conversation, error) {
	return r.find(ctx, bson.M{"user_id": userID}, page)
}

func (r *ConversationRepository) Search(ctx context.Context, term string, userID *int64, page ports.Page) ([]*domain.Conversation, error) {
	return r.find(ctx, searchFilter(term, userID), page)
}

func (r *ConversationRepository) Get(ctx context.Context, id int64) (*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoConversation
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if isNotFound(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *ConversationRepository) find(ctx context.Context, filter bson.M, page ports.Page) ([]*domain.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoConversation
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	convs := make([]*domain.Conversation, 0, len(docs))
	for _, d := range docs {
		convs = append(convs, d.toDomain())
	}
	return convs, nil
}

// searchFilter matches term case-insensitively and literally against question or answer.
func searchFilter(term string, userID *int64) bson.M {
	rx := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	filter := bson.M{"$or": bson.A{
		bson.M{"question": rx},
		bson.M{"answer": rx},
	}}
	if userID != nil {
		filter["user_id"] = *userID
	}
	return filter
}
