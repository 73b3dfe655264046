package persistence

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"podgen/internal/core"
	"podgen/internal/genlog"
)

const (
	podcastsCollection = "podcasts"
	episodesCollection = "episodes"
	logsCollection     = "generation_logs"
)

// MongoDatabase is the MongoDB-backed Database implementation.
type MongoDatabase struct {
	client   *mongo.Client
	database *mongo.Database

	podcasts *mongoPodcastRepo
	episodes *mongoEpisodeRepo
	logs     *mongoLogRepo
}

// NewMongoDatabase connects to MongoDB and verifies the connection.
func NewMongoDatabase(ctx context.Context, uri, databaseName string) (*MongoDatabase, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(databaseName)
	return &MongoDatabase{
		client:   client,
		database: db,
		podcasts: &mongoPodcastRepo{collection: db.Collection(podcastsCollection)},
		episodes: &mongoEpisodeRepo{collection: db.Collection(episodesCollection)},
		logs:     &mongoLogRepo{collection: db.Collection(logsCollection)},
	}, nil
}

func (d *MongoDatabase) Podcasts() PodcastRepository             { return d.podcasts }
func (d *MongoDatabase) Episodes() EpisodeRepository             { return d.episodes }
func (d *MongoDatabase) GenerationLogs() GenerationLogRepository { return d.logs }

func (d *MongoDatabase) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *MongoDatabase) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

type mongoPodcastRepo struct {
	collection *mongo.Collection
}

func (r *mongoPodcastRepo) Create(ctx context.Context, podcast *core.Podcast) error {
	if _, err := r.collection.InsertOne(ctx, podcast); err != nil {
		return fmt.Errorf("failed to insert podcast: %w", err)
	}
	return nil
}

func (r *mongoPodcastRepo) Get(ctx context.Context, id string) (*core.Podcast, error) {
	var podcast core.Podcast
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&podcast)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get podcast %s: %w", id, err)
	}
	return &podcast, nil
}

func (r *mongoPodcastRepo) List(ctx context.Context) ([]core.Podcast, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list podcasts: %w", err)
	}
	defer cursor.Close(ctx)

	var podcasts []core.Podcast
	if err := cursor.All(ctx, &podcasts); err != nil {
		return nil, fmt.Errorf("failed to decode podcasts: %w", err)
	}
	return podcasts, nil
}

func (r *mongoPodcastRepo) Update(ctx context.Context, podcast *core.Podcast) error {
	filter := bson.M{"_id": podcast.ID}
	update := bson.M{"$set": podcast}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to update podcast %s: %w", podcast.ID, err)
	}
	return nil
}

func (r *mongoPodcastRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete podcast %s: %w", id, err)
	}
	return nil
}

type mongoEpisodeRepo struct {
	collection *mongo.Collection
}

func (r *mongoEpisodeRepo) Create(ctx context.Context, episode *core.Episode) error {
	if _, err := r.collection.InsertOne(ctx, episode); err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	return nil
}

func (r *mongoEpisodeRepo) Get(ctx context.Context, id string) (*core.Episode, error) {
	var episode core.Episode
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&episode)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode %s: %w", id, err)
	}
	return &episode, nil
}

func (r *mongoEpisodeRepo) ListByPodcast(ctx context.Context, podcastID string, limit int) ([]core.Episode, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"podcast_id": podcastID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes for podcast %s: %w", podcastID, err)
	}
	defer cursor.Close(ctx)

	var episodes []core.Episode
	if err := cursor.All(ctx, &episodes); err != nil {
		return nil, fmt.Errorf("failed to decode episodes: %w", err)
	}
	return episodes, nil
}

func (r *mongoEpisodeRepo) Update(ctx context.Context, episode *core.Episode) error {
	filter := bson.M{"_id": episode.ID}
	update := bson.M{"$set": episode}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to update episode %s: %w", episode.ID, err)
	}
	return nil
}

func (r *mongoEpisodeRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete episode %s: %w", id, err)
	}
	return nil
}

type mongoLogRepo struct {
	collection *mongo.Collection
}

// Save upserts the full log snapshot; the orchestrator re-saves the log
// after every stage.
func (r *mongoLogRepo) Save(ctx context.Context, l genlog.Log) error {
	update, err := logUpdate(l)
	if err != nil {
		return fmt.Errorf("failed to encode generation log %s: %w", l.ID, err)
	}
	filter := bson.M{"_id": l.ID}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save generation log %s: %w", l.ID, err)
	}
	return nil
}

// logUpdate builds the upsert document for a log with absent values
// stripped, so optional fields cleared between re-saves do not linger in
// the stored document. The id rides in the filter, not the update.
func logUpdate(l genlog.Log) (bson.M, error) {
	doc, err := genlog.Document(l)
	if err != nil {
		return nil, err
	}
	delete(doc, "id")
	return bson.M{"$set": bson.M(doc)}, nil
}

func (r *mongoLogRepo) Get(ctx context.Context, id string) (*genlog.Log, error) {
	var l genlog.Log
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation log %s: %w", id, err)
	}
	return &l, nil
}

func (r *mongoLogRepo) GetByEpisodeID(ctx context.Context, episodeID string) (*genlog.Log, error) {
	var l genlog.Log
	err := r.collection.FindOne(ctx, bson.M{"episode_id": episodeID}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation log for episode %s: %w", episodeID, err)
	}
	return &l, nil
}

func (r *mongoLogRepo) ListByPodcast(ctx context.Context, podcastID string, limit int) ([]genlog.Log, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := r.collection.Find(ctx, bson.M{"podcast_id": podcastID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation logs for podcast %s: %w", podcastID, err)
	}
	defer cursor.Close(ctx)

	var logs []genlog.Log
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode generation logs: %w", err)
	}
	return logs, nil
}
