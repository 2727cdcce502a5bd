package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dbops-agent/internal/domain/entity"
)

type fakeDynamo struct {
	put      *dynamodb.PutItemInput
	query    *dynamodb.QueryInput
	items    []map[string]types.AttributeValue
	putErr   error
	queryErr error
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items = append(f.items, params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = params
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func sampleRun() *entity.TaskRun {
	started := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	run := entity.NewTaskRun("daily_backup", started, false)
	run.Fail(started.Add(90*time.Second), errors.New("pg_dump: connection refused"))
	return run
}

func TestSaveWritesKeysAndTTL(t *testing.T) {
	client := &fakeDynamo{}
	repo := newTaskRunRepository(client, "task_runs", 30)
	run := sampleRun()

	require.NoError(t, repo.Save(context.Background(), run))

	require.NotNil(t, client.put)
	assert.Equal(t, "task_runs", *client.put.TableName)
	item := client.put.Item
	assert.Equal(t, "TASK#daily_backup", item[attrPK].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "RUN#1792375200000#"+run.ID, item[attrSK].(*types.AttributeValueMemberS).Value)
	assert.Equal(t, "failure", item[attrOutcome].(*types.AttributeValueMemberS).Value)
	assert.NotContains(t, item, attrResult)

	expires := item[attrExpiresAt].(*types.AttributeValueMemberN).Value
	assert.Equal(t, "1794967200", expires)
}

func TestSaveWithoutTTL(t *testing.T) {
	client := &fakeDynamo{}
	repo := newTaskRunRepository(client, "task_runs", 0)

	require.NoError(t, repo.Save(context.Background(), sampleRun()))
	assert.NotContains(t, client.put.Item, attrExpiresAt)
}

func TestSaveRejectsInvalidRun(t *testing.T) {
	repo := newTaskRunRepository(&fakeDynamo{}, "task_runs", 0)

	assert.Error(t, repo.Save(context.Background(), nil))
	assert.Error(t, repo.Save(context.Background(), &entity.TaskRun{ID: "x"}))
}

func TestSavePropagatesClientError(t *testing.T) {
	repo := newTaskRunRepository(&fakeDynamo{putErr: errors.New("throttled")}, "task_runs", 0)

	err := repo.Save(context.Background(), sampleRun())
	assert.ErrorContains(t, err, "throttled")
}

func TestListByTask(t *testing.T) {
	client := &fakeDynamo{}
	repo := newTaskRunRepository(client, "task_runs", 7)
	run := sampleRun()
	require.NoError(t, repo.Save(context.Background(), run))

	runs, err := repo.ListByTask(context.Background(), "daily_backup", 500)
	require.NoError(t, err)

	assert.Equal(t, int32(maxListLimit), *client.query.Limit)
	assert.False(t, *client.query.ScanIndexForward)
	assert.Equal(t, "TASK#daily_backup", client.query.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value)

	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, run.StartedAt, got.StartedAt)
	assert.Equal(t, run.FinishedAt, got.FinishedAt)
	assert.Equal(t, entity.RunFailed, got.Outcome)
	assert.Equal(t, "pg_dump: connection refused", got.Error)
	assert.False(t, got.Manual)

	_, err = repo.ListByTask(context.Background(), " ", 1)
	assert.Error(t, err)
}
