// Package testutil holds fakes shared by the function handler tests.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"measurement-gateway/internal/database"
	"measurement-gateway/internal/database/sqlite"
	"measurement-gateway/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func Logger() *logrus.Entry {
	return logrus.WithField("component", "test")
}

// NewDB returns a migrated in-memory SQLite database closed at the end of the test.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite, Logger()))
	return db
}

type SentMessage struct {
	BusinessNumberID string
	Header           http.Header
	Body             []byte
}

// FakeGraph records relayed messages and serves canned Graph API answers.
type FakeGraph struct {
	mu sync.Mutex

	Response *utils.RelayResponse
	Err      error
	Sent     []SentMessage

	Conversations   map[string]int
	BusinessNumbers map[string]string
	AnalyticsErr    error

	SubscriberList  json.RawMessage
	SubscriberErr   error
	SubscriberCalls []utils.SubscriberListParams
}

var _ utils.GraphAPI = (*FakeGraph)(nil)

func (f *FakeGraph) SendMessage(ctx context.Context, businessNumberID string, header http.Header, body []byte) (*utils.RelayResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Sent = append(f.Sent, SentMessage{BusinessNumberID: businessNumberID, Header: header, Body: body})
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Response == nil {
		return &utils.RelayResponse{StatusCode: http.StatusOK, Body: []byte(`{"messages":[{"id":"wamid.sent"}]}`)}, nil
	}
	return f.Response, nil
}

func (f *FakeGraph) ConversationsByBusinessNumber(ctx context.Context, accessToken, wabaID string, start, end time.Time) (map[string]int, error) {
	if f.AnalyticsErr != nil {
		return nil, f.AnalyticsErr
	}
	return f.Conversations, nil
}

func (f *FakeGraph) BusinessNumbersByID(ctx context.Context, accessToken, wabaID string) (map[string]string, error) {
	if f.AnalyticsErr != nil {
		return nil, f.AnalyticsErr
	}
	return f.BusinessNumbers, nil
}

func (f *FakeGraph) CreateSubscriberList(ctx context.Context, params utils.SubscriberListParams) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SubscriberCalls = append(f.SubscriberCalls, params)
	if f.SubscriberErr != nil {
		return nil, f.SubscriberErr
	}
	return f.SubscriberList, nil
}

// FakePublisher keeps published bodies in memory.
type FakePublisher struct {
	mu        sync.Mutex
	Err       error
	Published []string
}

func (p *FakePublisher) Publish(ctx context.Context, body string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Err != nil {
		return "", p.Err
	}
	p.Published = append(p.Published, body)
	return fmt.Sprintf("msg-%d", len(p.Published)), nil
}

// FakeS3 is an in-memory bucket keyed by "bucket/key".
type FakeS3 struct {
	mu       sync.Mutex
	Objects  map[string][]byte
	PutErr   error
	Uploaded []*s3.PutObjectInput
}

var _ utils.S3API = (*FakeS3)(nil)

func NewFakeS3() *FakeS3 {
	return &FakeS3{Objects: map[string][]byte{}}
}

func (f *FakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	body, ok := f.Objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey: the specified key does not exist")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *FakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PutErr != nil {
		return nil, f.PutErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.Objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)] = body
	f.Uploaded = append(f.Uploaded, params)
	return &s3.PutObjectOutput{}, nil
}
