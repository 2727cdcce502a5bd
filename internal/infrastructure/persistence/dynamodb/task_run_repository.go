package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	attrPK         = "PK"
	attrSK         = "SK"
	attrRunID      = "run_id"
	attrTaskID     = "task_id"
	attrStartedAt  = "started_at"
	attrFinishedAt = "finished_at"
	attrOutcome    = "outcome"
	attrResult     = "result"
	attrError      = "error"
	attrManual     = "manual"
	attrExpiresAt  = "expires_at"
)

type Config struct {
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	TTLDays         int
}

// dynamoAPI подмножество клиента DynamoDB, которое использует репозиторий
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// TaskRunRepository хранит журнал запусков задач в DynamoDB.
// Реализует repository.TaskRunRepository.
type TaskRunRepository struct {
	client    dynamoAPI
	tableName string
	ttl       time.Duration
}

func NewTaskRunRepository(ctx context.Context, cfg Config) (*TaskRunRepository, error) {
	if strings.TrimSpace(cfg.TableName) == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	accessKeyID := strings.TrimSpace(cfg.AccessKeyID)
	secretAccessKey := strings.TrimSpace(cfg.SecretAccessKey)
	if accessKeyID != "" || secretAccessKey != "" {
		if accessKeyID == "" || secretAccessKey == "" {
			return nil, fmt.Errorf("both dynamodb access key id and secret access key are required for static credentials")
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			secretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config for dynamodb: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})

	return newTaskRunRepository(client, cfg.TableName, cfg.TTLDays), nil
}

func newTaskRunRepository(client dynamoAPI, tableName string, ttlDays int) *TaskRunRepository {
	var ttl time.Duration
	if ttlDays > 0 {
		ttl = time.Duration(ttlDays) * 24 * time.Hour
	}
	return &TaskRunRepository{
		client:    client,
		tableName: strings.TrimSpace(tableName),
		ttl:       ttl,
	}
}

// Save записывает один запуск
func (r *TaskRunRepository) Save(ctx context.Context, run *entity.TaskRun) error {
	item, err := r.toItem(run)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamodb put item failed: %w", err)
	}
	return nil
}

// ListByTask возвращает последние запуски задачи, новые первыми
func (r *TaskRunRepository) ListByTask(ctx context.Context, taskID string, limit int) ([]*entity.TaskRun, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("task_id is required")
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	keyCondition := "#pk = :pk"
	output, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                &r.tableName,
		KeyConditionExpression:   &keyCondition,
		ExpressionAttributeNames: map[string]string{"#pk": attrPK},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: buildPK(taskID)},
		},
		Limit:            int32Pointer(int32(limit)),
		ScanIndexForward: boolPointer(false),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb query failed: %w", err)
	}

	runs := make([]*entity.TaskRun, 0, len(output.Items))
	for _, raw := range output.Items {
		run, err := fromItem(raw)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (r *TaskRunRepository) toItem(run *entity.TaskRun) (map[string]types.AttributeValue, error) {
	if run == nil {
		return nil, fmt.Errorf("task run is required")
	}
	if strings.TrimSpace(run.TaskID) == "" {
		return nil, fmt.Errorf("task_id is required")
	}
	if strings.TrimSpace(run.ID) == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	startedMS := run.StartedAt.UTC().UnixMilli()
	finishedMS := run.FinishedAt.UTC().UnixMilli()

	item := map[string]types.AttributeValue{
		attrPK:         &types.AttributeValueMemberS{Value: buildPK(run.TaskID)},
		attrSK:         &types.AttributeValueMemberS{Value: buildSK(startedMS, run.ID)},
		attrRunID:      &types.AttributeValueMemberS{Value: run.ID},
		attrTaskID:     &types.AttributeValueMemberS{Value: run.TaskID},
		attrStartedAt:  &types.AttributeValueMemberN{Value: strconv.FormatInt(startedMS, 10)},
		attrFinishedAt: &types.AttributeValueMemberN{Value: strconv.FormatInt(finishedMS, 10)},
		attrOutcome:    &types.AttributeValueMemberS{Value: string(run.Outcome)},
		attrManual:     &types.AttributeValueMemberBOOL{Value: run.Manual},
	}

	if run.Result != "" {
		item[attrResult] = &types.AttributeValueMemberS{Value: run.Result}
	}
	if run.Error != "" {
		item[attrError] = &types.AttributeValueMemberS{Value: run.Error}
	}
	if r.ttl > 0 {
		expiresAt := run.StartedAt.Add(r.ttl).UTC().Unix()
		item[attrExpiresAt] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)}
	}

	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (*entity.TaskRun, error) {
	runID, err := attrString(item, attrRunID)
	if err != nil {
		return nil, err
	}
	taskID, err := attrString(item, attrTaskID)
	if err != nil {
		return nil, err
	}
	outcome, err := attrString(item, attrOutcome)
	if err != nil {
		return nil, err
	}
	startedMS, err := attrInt64(item, attrStartedAt)
	if err != nil {
		return nil, err
	}

	run := &entity.TaskRun{
		ID:        runID,
		TaskID:    taskID,
		StartedAt: time.UnixMilli(startedMS).UTC(),
		Outcome:   entity.RunOutcome(outcome),
		Result:    optionalString(item, attrResult),
		Error:     optionalString(item, attrError),
	}
	if finishedMS := optionalInt64(item, attrFinishedAt); finishedMS > 0 {
		run.FinishedAt = time.UnixMilli(finishedMS).UTC()
	}
	if manual, ok := item[attrManual].(*types.AttributeValueMemberBOOL); ok {
		run.Manual = manual.Value
	}

	return run, nil
}

func buildPK(taskID string) string {
	return "TASK#" + taskID
}

func buildSK(startedMS int64, runID string) string {
	return fmt.Sprintf("RUN#%013d#%s", startedMS, runID)
}

func attrString(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok || strings.TrimSpace(value.Value) == "" {
		return "", fmt.Errorf("invalid attribute %s", name)
	}
	return value.Value, nil
}

func optionalString(item map[string]types.AttributeValue, name string) string {
	raw, ok := item[name]
	if !ok {
		return ""
	}
	value, ok := raw.(*types.AttributeValueMemberS)
	if !ok {
		return ""
	}
	return value.Value
}

func attrInt64(item map[string]types.AttributeValue, name string) (int64, error) {
	raw, ok := item[name]
	if !ok {
		return 0, fmt.Errorf("missing attribute %s", name)
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("invalid attribute %s", name)
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid attribute %s: %w", name, err)
	}
	return parsed, nil
}

func optionalInt64(item map[string]types.AttributeValue, name string) int64 {
	raw, ok := item[name]
	if !ok {
		return 0
	}
	value, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	parsed, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func boolPointer(v bool) *bool {
	return &v
}

func int32Pointer(v int32) *int32 {
	return &v
}
