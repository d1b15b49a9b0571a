package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joescharf/issuetracker/internal/models"
)

const issuesCollection = "issues"

// issueDoc is the BSON shape of an issue.
type issueDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Title      string             `bson:"issue_title"`
	Text       string             `bson:"issue_text"`
	CreatedBy  string             `bson:"created_by"`
	AssignedTo string             `bson:"assigned_to"`
	StatusText string             `bson:"status_text"`
	Open       bool               `bson:"open"`
	CreatedOn  time.Time          `bson:"created_on"`
	UpdatedOn  time.Time          `bson:"updated_on"`
	Project    string             `bson:"project"`
}

func toIssueDoc(issue *models.Issue) issueDoc {
	return issueDoc{
		Title:      issue.Title,
		Text:       issue.Text,
		CreatedBy:  issue.CreatedBy,
		AssignedTo: issue.AssignedTo,
		StatusText: issue.StatusText,
		Open:       issue.Open,
		CreatedOn:  issue.CreatedOn.UTC(),
		UpdatedOn:  issue.UpdatedOn.UTC(),
		Project:    issue.Project,
	}
}

func (d issueDoc) issue() *models.Issue {
	return &models.Issue{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Text:       d.Text,
		CreatedBy:  d.CreatedBy,
		AssignedTo: d.AssignedTo,
		StatusText: d.StatusText,
		Open:       d.Open,
		CreatedOn:  d.CreatedOn.UTC(),
		UpdatedOn:  d.UpdatedOn.UTC(),
		Project:    d.Project,
	}
}

// MongoStore implements Store on a MongoDB collection. Issue ids are ObjectIDs.
type MongoStore struct {
	client *mongo.Client
	issues *mongo.Collection
}

// NewMongoStore connects to uri and verifies the server is reachable within timeout,
// so an unreachable store fails at startup instead of on the first request.
func NewMongoStore(ctx context.Context, uri, database string, timeout time.Duration) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{
		client: client,
		issues: client.Database(database).Collection(issuesCollection),
	}

	_, err = s.issues.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "project", Value: 1}}})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create project index: %w", err)
	}
	return s, nil
}

// Ping checks that the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) InsertIssue(ctx context.Context, issue *models.Issue) error {
	doc := toIssueDoc(issue)
	if issue.ID == "" {
		doc.ID = primitive.NewObjectID()
	} else {
		oid, err := primitive.ObjectIDFromHex(issue.ID)
		if err != nil {
			return fmt.Errorf("insert issue: invalid id %q: %w", issue.ID, err)
		}
		doc.ID = oid
	}

	if _, err := s.issues.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	issue.ID = doc.ID.Hex()
	return nil
}

// mongoFilter translates a Filter into a BSON query. ok is false when the
// filter can never match, e.g. an _id clause that is not a valid ObjectID.
func mongoFilter(filter Filter) (query bson.D, ok bool) {
	if filter.MatchNone {
		return nil, false
	}
	query = bson.D{{Key: string(models.FieldProject), Value: filter.Project}}
	for _, c := range filter.Clauses {
		if c.Field == models.FieldID {
			hex, _ := c.Value.(string)
			oid, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				return nil, false
			}
			query = append(query, bson.E{Key: "_id", Value: oid})
			continue
		}
		query = append(query, bson.E{Key: string(c.Field), Value: c.Value})
	}
	return query, true
}

func (s *MongoStore) FindIssues(ctx context.Context, filter Filter) ([]*models.Issue, error) {
	issues := []*models.Issue{}
	query, ok := mongoFilter(filter)
	if !ok {
		return issues, nil
	}

	cur, err := s.issues.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("find issues: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		var doc issueDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode issue: %w", err)
		}
		issues = append(issues, doc.issue())
	}
	return issues, cur.Err()
}

// mongoUpdate builds the update document. $max keeps updated_on from moving backwards.
func mongoUpdate(changes ChangeSet) bson.D {
	update := bson.D{}
	if len(changes.Fields) > 0 {
		set := bson.D{}
		for _, spec := range models.Fields {
			if v, ok := changes.Fields[spec.Name]; ok {
				set = append(set, bson.E{Key: string(spec.Name), Value: v})
			}
		}
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	update = append(update, bson.E{Key: "$max", Value: bson.D{
		{Key: string(models.FieldUpdatedOn), Value: changes.UpdatedOn.UTC()},
	}})
	return update
}

func (s *MongoStore) UpdateIssueByID(ctx context.Context, id string, changes ChangeSet) (*models.Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc issueDoc
	err = s.issues.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, mongoUpdate(changes), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}
	return doc.issue(), nil
}

func (s *MongoStore) DeleteIssueByID(ctx context.Context, id string) (*models.Issue, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc issueDoc
	err = s.issues.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete issue: %w", err)
	}
	return doc.issue(), nil
}
