// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ContentCollections are the collections the change stream watches. Each
// needs pre- and post-images so delete events carry their before snapshot.
var ContentCollections = []string{
	"resources",
	"cards",
	"feedback",
	"topics",
	"subtopics",
	"subjects",
	"syllabus_lessons",
	"resource_headers",
	"featured_headers",
	"users",
}

// CheckpointCollection holds change stream resume tokens.
const CheckpointCollection = "sync_checkpoints"

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := EnsurePreImages(ctx, db); err != nil {
		problems = append(problems, "pre-images: "+err.Error())
	}
	if err := ensureResources(ctx, db); err != nil {
		problems = append(problems, "resources: "+err.Error())
	}
	if err := ensureFeedback(ctx, db); err != nil {
		problems = append(problems, "feedback: "+err.Error())
	}
	if err := ensureHeaders(ctx, db); err != nil {
		problems = append(problems, "featured_headers: "+err.Error())
	}
	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	// cards, topics, subtopics and syllabus_lessons are only listed by parent.
	for _, name := range []string{"cards", "topics", "subtopics", "subjects", "syllabus_lessons", "resource_headers"} {
		if err := ensureParent(ctx, db, name); err != nil {
			problems = append(problems, name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// EnsurePreImages creates the content collections when missing and enables
// changeStreamPreAndPostImages on each (MongoDB 6.0+).
func EnsurePreImages(ctx context.Context, db *mongo.Database) error {
	var errs []string
	for _, name := range ContentCollections {
		if err := db.CreateCollection(ctx, name); err != nil && !isNamespaceExists(err) {
			errs = append(errs, fmt.Sprintf("create %s: %v", name, err))
			continue
		}
		cmd := bson.D{
			{Key: "collMod", Value: name},
			{Key: "changeStreamPreAndPostImages", Value: bson.D{{Key: "enabled", Value: true}}},
		}
		if err := db.RunCommand(ctx, cmd).Err(); err != nil {
			errs = append(errs, fmt.Sprintf("collMod %s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isNamespaceExists(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 48 { // NamespaceExists
		return true
	}
	return strings.Contains(err.Error(), "NamespaceExists") || strings.Contains(err.Error(), "already exists")
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(p *bool) bool { return p != nil && *p }

func listIndexes(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := map[string]existingIndex{} // sig -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out, cur.Err()
}

// ensureIndexSet creates missing indexes and drops and recreates those whose
// name or uniqueness differs from the desired model.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	existing, err := listIndexes(ctx, coll)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}

	var errs []string
	for _, m := range models {
		name := *m.Options.Name
		unique := isUnique(m.Options.Unique)
		sig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[sig]; ok {
			if ex.Name == name && isUnique(ex.Unique) == unique {
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", sig))
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.String("keys", sig),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", unique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureParent(ctx context.Context, db *mongo.Database, name string) error {
	return ensureIndexSet(ctx, db.Collection(name), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "_parent", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_" + name + "_parent__id"),
		},
	})
}

func ensureResources(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("resources")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Featured selection and counting: one group per (subtopic, type).
		{
			Keys: bson.D{
				{Key: "_parent", Value: 1},
				{Key: "subtopic", Value: 1},
				{Key: "resourceType", Value: 1},
				{Key: "status", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_resources_parent_subtopic_type_status__id"),
		},
		// Pending flag: awaiting review per topic.
		{
			Keys:    bson.D{{Key: "_parent", Value: 1}, {Key: "topic", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_resources_parent_topic_status"),
		},
	})
}

func ensureFeedback(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("feedback")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "_parent", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_feedback_parent__id"),
		},
		// Latest unlocked reviewer comment of a card.
		{
			Keys: bson.D{
				{Key: "_parent", Value: 1},
				{Key: "reviewerComment", Value: 1},
				{Key: "locked", Value: 1},
				{Key: "dateUpdated", Value: -1},
			},
			Options: options.Index().SetName("idx_feedback_parent_reviewer_locked_dateupdated"),
		},
	})
}

func ensureHeaders(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("featured_headers")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "_parent", Value: 1}, {Key: "topic", Value: 1}},
			Options: options.Index().SetName("idx_featured_headers_parent_topic"),
		},
	})
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "_parent", Value: 1}, {Key: "isAdminOrMod", Value: 1}},
			Options: options.Index().SetName("idx_users_parent_isadminormod"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_users_email").SetSparse(true),
		},
	})
}
