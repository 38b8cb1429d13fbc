package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

// DynamoDBVideoStore implements VideoStore using DynamoDB. Videos live in
// tableName; like membership lives in tableName-likes under a composite key.
// Watch falls back to polling since this store has no in-process mutation
// stream across service instances.
type DynamoDBVideoStore struct {
	client     *dynamodb.Client
	tableName  string
	likesTable string

	pollInterval time.Duration
}

var _ VideoStore = (*DynamoDBVideoStore)(nil)

type videoItem struct {
	ID           string  `dynamodbav:"id"`
	UserID       string  `dynamodbav:"userId"`
	Title        *string `dynamodbav:"title,omitempty"`
	Description  *string `dynamodbav:"description,omitempty"`
	VideoURL     string  `dynamodbav:"videoUrl"`
	ThumbnailURL *string `dynamodbav:"thumbnailUrl,omitempty"`
	CreatedAt    int64   `dynamodbav:"createdAt"` // Unix milliseconds
	ViewCount    int64   `dynamodbav:"viewCount"`
	LikeCount    int64   `dynamodbav:"likeCount"`
	ShareCount   int64   `dynamodbav:"shareCount"`
}

func toItem(v *media.Video) videoItem {
	return videoItem{
		ID:           v.ID,
		UserID:       v.UserID,
		Title:        v.Title,
		Description:  v.Description,
		VideoURL:     v.VideoURL,
		ThumbnailURL: v.ThumbnailURL,
		CreatedAt:    v.CreatedAt.UnixMilli(),
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		ShareCount:   v.ShareCount,
	}
}

func (item videoItem) toVideo() media.Video {
	return media.Video{
		ID:           item.ID,
		UserID:       item.UserID,
		Title:        item.Title,
		Description:  item.Description,
		VideoURL:     item.VideoURL,
		ThumbnailURL: item.ThumbnailURL,
		CreatedAt:    time.UnixMilli(item.CreatedAt),
		ViewCount:    item.ViewCount,
		LikeCount:    item.LikeCount,
		ShareCount:   item.ShareCount,
	}
}

// condFailed reports whether err is DynamoDB rejecting a write because its
// condition expression did not hold, e.g. attribute_exists on a missing key.
func condFailed(err error) bool {
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}

func NewDynamoDBVideoStore(tableName string) (*DynamoDBVideoStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("DynamoDB table name cannot be empty")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &DynamoDBVideoStore{
		client:       dynamodb.NewFromConfig(cfg),
		tableName:    tableName,
		likesTable:   tableName + "-likes",
		pollInterval: 2 * time.Second,
	}, nil
}

func (s *DynamoDBVideoStore) Create(ctx context.Context, v *media.Video) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	av, err := attributevalue.MarshalMap(toItem(v))
	if err != nil {
		return "", fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put item: %w", err)
	}

	return v.ID, nil
}

func (s *DynamoDBVideoStore) Get(ctx context.Context, id string) (*media.Video, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item videoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	v := item.toVideo()
	return &v, nil
}

// scanAll reads every video, newest first. The feed is small enough for a
// table scan; a createdAt GSI would replace this at scale.
func (s *DynamoDBVideoStore) scanAll(ctx context.Context, filter *string) ([]media.Video, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(s.tableName)}
	if filter != nil {
		input.FilterExpression = filter
	}

	var videos []media.Video
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}

		var items []videoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal items: %w", err)
		}
		for _, item := range items {
			videos = append(videos, item.toVideo())
		}
	}

	sort.Slice(videos, func(i, j int) bool {
		if !videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].CreatedAt.After(videos[j].CreatedAt)
		}
		return videos[i].ID > videos[j].ID
	})
	return videos, nil
}

func (s *DynamoDBVideoStore) List(ctx context.Context, limit int, startAfterID string) ([]media.Video, error) {
	videos, err := s.scanAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	start := 0
	if startAfterID != "" {
		found := false
		for i, v := range videos {
			if v.ID == startAfterID {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("cursor video %s: %w", startAfterID, media.ErrNotFound)
		}
	}

	if start >= len(videos) {
		return nil, nil
	}
	end := start + limit
	if end > len(videos) {
		end = len(videos)
	}
	return videos[start:end], nil
}

func (s *DynamoDBVideoStore) ListByUser(ctx context.Context, userID string) ([]media.Video, error) {
	videos, err := s.scanAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	var result []media.Video
	for _, v := range videos {
		if v.UserID == userID {
			result = append(result, v)
		}
	}
	return result, nil
}

func (s *DynamoDBVideoStore) ListMissingThumbnails(ctx context.Context) ([]media.Video, error) {
	return s.scanAll(ctx, aws.String("attribute_not_exists(thumbnailUrl)"))
}

func (s *DynamoDBVideoStore) Update(ctx context.Context, id string, title, description, thumbnailURL *string) error {
	expr := ""
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	add := func(attr string, val *string) {
		if val == nil {
			return
		}
		if expr != "" {
			expr += ", "
		}
		expr += fmt.Sprintf("#%s = :%s", attr, attr)
		names["#"+attr] = attr
		values[":"+attr] = &types.AttributeValueMemberS{Value: *val}
	}
	add("title", title)
	add("description", description)
	add("thumbnailUrl", thumbnailURL)

	if expr == "" {
		return nil
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String("SET " + expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if condFailed(err) {
			return media.ErrNotFound
		}
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func (s *DynamoDBVideoStore) SetThumbnailURL(ctx context.Context, id, url string) error {
	return s.Update(ctx, id, nil, nil, &url)
}

func (s *DynamoDBVideoStore) increment(ctx context.Context, id, attr string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String("ADD #c :one"),
		ExpressionAttributeNames: map[string]string{"#c": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if condFailed(err) {
			return media.ErrNotFound
		}
		return fmt.Errorf("failed to increment %s: %w", attr, err)
	}
	return nil
}

func (s *DynamoDBVideoStore) IncrementViews(ctx context.Context, id string) error {
	return s.increment(ctx, id, "viewCount")
}

func (s *DynamoDBVideoStore) IncrementShares(ctx context.Context, id string) error {
	return s.increment(ctx, id, "shareCount")
}

// ToggleLike flips membership with conditional writes, so concurrent toggles
// by the same user resolve to exactly one count adjustment each instead of
// double-applying around a stale read.
func (s *DynamoDBVideoStore) ToggleLike(ctx context.Context, videoID, userID string) (bool, error) {
	key := map[string]types.AttributeValue{
		"videoId": &types.AttributeValueMemberS{Value: videoID},
		"userId":  &types.AttributeValueMemberS{Value: userID},
	}

	item := map[string]types.AttributeValue{
		"videoId":   key["videoId"],
		"userId":    key["userId"],
		"createdAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().UnixMilli())},
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.likesTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(videoId)"),
	})
	if err == nil {
		if err := s.addToLikeCount(ctx, videoID, 1); err != nil {
			return false, err
		}
		return true, nil
	}
	if !condFailed(err) {
		return false, fmt.Errorf("failed to add like: %w", err)
	}

	// Already liked; remove the membership row, guarded so a concurrent
	// unlike cannot decrement twice.
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.likesTable),
		Key:                 key,
		ConditionExpression: aws.String("attribute_exists(videoId)"),
	})
	if err != nil {
		if condFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove like: %w", err)
	}
	if err := s.addToLikeCount(ctx, videoID, -1); err != nil {
		return false, err
	}
	return false, nil
}

func (s *DynamoDBVideoStore) addToLikeCount(ctx context.Context, videoID string, delta int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: videoID},
		},
		UpdateExpression:         aws.String("ADD #c :d"),
		ExpressionAttributeNames: map[string]string{"#c": "likeCount"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", delta)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update like count: %w", err)
	}
	return nil
}

func (s *DynamoDBVideoStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		if condFailed(err) {
			return media.ErrNotFound
		}
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// Close is a no-op; the DynamoDB client holds no local resources.
func (s *DynamoDBVideoStore) Close() error {
	return nil
}

func (s *DynamoDBVideoStore) Watch(ctx context.Context, limit int) (<-chan []media.Video, error) {
	initial, err := s.List(ctx, limit, "")
	if err != nil {
		return nil, err
	}

	out := make(chan []media.Video, 4)
	out <- initial

	go func() {
		defer close(out)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				videos, err := s.List(ctx, limit, "")
				if err != nil {
					continue
				}
				select {
				case out <- videos:
				default:
				}
			}
		}
	}()

	return out, nil
}
