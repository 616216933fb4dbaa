package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/application/execution"
	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/domain/interfaces/mocks"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

type fakeExecutor struct {
	requests []execution.Request
	result   *execution.Result
	err      error
	panicMsg string
}

func (f *fakeExecutor) Execute(_ context.Context, req execution.Request) (*execution.Result, error) {
	f.requests = append(f.requests, req)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.result, f.err
}

type runnerFixture struct {
	queries     *mocks.MockScheduledQueryRepository
	connections *mocks.MockConnectionRepository
	delivery    *mocks.MockDeliveryService
	executor    *fakeExecutor
	runner      *Runner
	state       *domain.RunState
}

var runAt = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newRunnerFixture(t *testing.T) *runnerFixture {
	f := &runnerFixture{
		queries:     mocks.NewMockScheduledQueryRepository(t),
		connections: mocks.NewMockConnectionRepository(t),
		delivery:    mocks.NewMockDeliveryService(t),
		executor: &fakeExecutor{result: &execution.Result{
			SQL:  "SELECT id, name FROM users",
			Data: map[string]any{"columns": []any{"id", "name"}, "data": []any{[]any{1, "Ada"}, []any{2, "Linus"}}},
		}},
	}
	f.runner = NewRunner(f.queries, f.connections, f.executor, f.delivery, time.Minute)
	f.runner.now = func() time.Time { return runAt }
	return f
}

func (f *runnerFixture) expectState() {
	f.queries.On("UpdateRunState", mock.Anything, "sq-1", mock.Anything).
		Run(func(args mock.Arguments) {
			state := args.Get(2).(domain.RunState)
			f.state = &state
		}).
		Return(nil).Once()
}

func sqlQuery() *domain.ScheduledQuery {
	return &domain.ScheduledQuery{
		ID:           "sq-1",
		WorkspaceID:  "ws-1",
		ConnectionID: "conn-1",
		Name:         "Daily Users",
		Description:  "All users",
		QueryType:    domain.QueryTypeSQL,
		SQL:          "SELECT id, name FROM users",
		Recipients:   []string{"ops@example.com"},
		Format:       []domain.ReportFormat{domain.FormatCSV, domain.FormatPDF},
		Enabled:      true,
		CreatedBy:    "user-1",
	}
}

func TestRunner_Success(t *testing.T) {
	f := newRunnerFixture(t)
	f.queries.On("Get", mock.Anything, "sq-1").Return(sqlQuery(), nil)
	f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
	f.expectState()

	var sent interfaces.Message
	f.delivery.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(interfaces.Message) }).
		Return(nil)

	out := f.runner.Run(context.Background(), "sq-1")
	require.NotNil(t, out)
	assert.Equal(t, domain.RunSuccess, out.Status)
	assert.Equal(t, 2, out.RowCount)

	require.Len(t, f.executor.requests, 1)
	req := f.executor.requests[0]
	assert.Equal(t, domain.MaxRowLimit, req.Limit)
	assert.Equal(t, "user-1", req.UserID)
	assert.Nil(t, req.Definition)

	assert.Equal(t, []string{"ops@example.com"}, sent.To)
	assert.Equal(t, "Scheduled Query Results: Daily Users", sent.Subject)
	assert.Contains(t, sent.HTMLBody, "<h2>Daily Users</h2>")
	assert.Contains(t, sent.HTMLBody, "<p>All users</p>")
	assert.Contains(t, sent.HTMLBody, "2024-05-06 07:08:09 UTC")
	assert.Contains(t, sent.HTMLBody, "Rows returned:</strong> 2")
	assert.Contains(t, sent.HTMLBody, "SELECT id, name FROM users</pre>")
	require.Len(t, sent.Attachments, 2)
	assert.Equal(t, "Daily_Users.csv", sent.Attachments[0].Filename)
	assert.Equal(t, "id,name\r\n1,Ada\r\n2,Linus\r\n", string(sent.Attachments[0].Data))
	assert.Equal(t, "Daily_Users.pdf", sent.Attachments[1].Filename)

	require.NotNil(t, f.state)
	assert.Equal(t, domain.RunSuccess, f.state.LastRunStatus)
	assert.Empty(t, f.state.LastRunError)
	assert.Equal(t, runAt, f.state.LastRunAt)
}

func TestRunner_ReportForSeveralRecipients(t *testing.T) {
	f := newRunnerFixture(t)
	rows := make([]any, 120)
	for i := range rows {
		rows[i] = []any{i + 1, fmt.Sprintf("user-%03d", i+1)}
	}
	f.executor.result = &execution.Result{
		SQL:  "SELECT id, name FROM users",
		Data: map[string]any{"columns": []any{"id", "name"}, "data": rows},
	}

	q := sqlQuery()
	q.Recipients = []string{"ops@example.com", "finance@example.com"}
	f.queries.On("Get", mock.Anything, "sq-1").Return(q, nil)
	f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
	f.expectState()

	var sent []interfaces.Message
	f.delivery.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(interfaces.Message)) }).
		Return(nil)

	out := f.runner.Run(context.Background(), "sq-1")
	require.NotNil(t, out)
	assert.Equal(t, domain.RunSuccess, out.Status)
	assert.Equal(t, 120, out.RowCount)

	require.Len(t, sent, 1, "one message addressed to every recipient")
	msg := sent[0]
	assert.Equal(t, []string{"ops@example.com", "finance@example.com"}, msg.To)
	assert.Contains(t, msg.HTMLBody, "Rows returned:</strong> 120")

	byExt := map[string][]interfaces.Attachment{}
	for _, a := range msg.Attachments {
		ext := a.Filename[strings.LastIndex(a.Filename, ".")+1:]
		byExt[ext] = append(byExt[ext], a)
	}
	require.Len(t, msg.Attachments, 2)
	require.Len(t, byExt["csv"], 1)
	require.Len(t, byExt["pdf"], 1)

	csvLines := strings.Split(strings.TrimRight(string(byExt["csv"][0].Data), "\r\n"), "\r\n")
	assert.Len(t, csvLines, 121)
	assert.Equal(t, "id,name", csvLines[0])
	assert.Equal(t, "120,user-120", csvLines[120])
	assert.True(t, strings.HasPrefix(string(byExt["pdf"][0].Data), "%PDF"))

	require.NotNil(t, f.state)
	assert.Equal(t, domain.RunSuccess, f.state.LastRunStatus)
}

func TestRunner_VisualDefaultsLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     *int
		wantLimit int
	}{
		{name: "no limit", wantLimit: domain.MaxRowLimit},
		{name: "own limit", limit: domain.IntPtr(25), wantLimit: 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t)
			q := sqlQuery()
			q.QueryType = domain.QueryTypeVisual
			q.SQL = ""
			q.QueryDefinition = &domain.QueryDefinition{Table: "users", Limit: tt.limit}
			q.Subject = "Users"

			f.queries.On("Get", mock.Anything, "sq-1").Return(q, nil)
			f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
			f.delivery.On("Send", mock.Anything, mock.MatchedBy(func(m interfaces.Message) bool {
				return m.Subject == "Users"
			})).Return(nil)
			f.expectState()

			out := f.runner.Run(context.Background(), "sq-1")
			require.NotNil(t, out)
			assert.Equal(t, domain.RunSuccess, out.Status)

			req := f.executor.requests[0]
			require.NotNil(t, req.Definition)
			assert.Equal(t, tt.wantLimit, *req.Definition.Limit)
			assert.Equal(t, tt.limit, q.QueryDefinition.Limit, "stored definition is not mutated")
		})
	}
}

func TestRunner_Skips(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.queries.On("Get", mock.Anything, "sq-1").Return(nil, apperrors.NotFound("scheduled query", "sq-1"))
		assert.Nil(t, f.runner.Run(context.Background(), "sq-1"))
	})

	t.Run("disabled", func(t *testing.T) {
		f := newRunnerFixture(t)
		q := sqlQuery()
		q.Enabled = false
		f.queries.On("Get", mock.Anything, "sq-1").Return(q, nil)
		assert.Nil(t, f.runner.Run(context.Background(), "sq-1"))
		assert.Empty(t, f.executor.requests)
	})
}

func TestRunner_RunNowIgnoresEnabled(t *testing.T) {
	f := newRunnerFixture(t)
	q := sqlQuery()
	q.Enabled = false
	f.queries.On("Get", mock.Anything, "sq-1").Return(q, nil)
	f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
	f.delivery.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.expectState()

	out := f.runner.RunNow(context.Background(), "sq-1")
	require.NotNil(t, out)
	assert.Equal(t, domain.RunSuccess, out.Status)
}

func TestRunner_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *runnerFixture)
		wantError string
	}{
		{
			name: "connection missing",
			setup: func(f *runnerFixture) {
				f.connections.On("Get", mock.Anything, "conn-1").Return(nil, apperrors.NotFound("connection", "conn-1"))
			},
			wantError: "Connection not found",
		},
		{
			name: "execution fails",
			setup: func(f *runnerFixture) {
				f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
				f.executor.err = apperrors.NewAppError(apperrors.ErrCodeGatewayTimeout, "gateway did not respond", nil)
			},
			wantError: "gateway did not respond",
		},
		{
			name: "delivery fails",
			setup: func(f *runnerFixture) {
				f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
				f.delivery.On("Send", mock.Anything, mock.Anything).
					Return(apperrors.NewAppError(apperrors.ErrCodeDeliveryFailed, "failed to send email", errors.New("535 auth")))
			},
			wantError: "failed to send email",
		},
		{
			name: "panic is recovered",
			setup: func(f *runnerFixture) {
				f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1"}, nil)
				f.executor.panicMsg = "nil map"
			},
			wantError: "panic during scheduled run: nil map",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRunnerFixture(t)
			f.queries.On("Get", mock.Anything, "sq-1").Return(sqlQuery(), nil)
			f.expectState()
			tt.setup(f)

			out := f.runner.Run(context.Background(), "sq-1")
			require.NotNil(t, out)
			assert.Equal(t, domain.RunError, out.Status)
			assert.True(t, strings.Contains(out.Error, tt.wantError), out.Error)

			require.NotNil(t, f.state)
			assert.Equal(t, domain.RunError, f.state.LastRunStatus)
			assert.Equal(t, out.Error, f.state.LastRunError)
		})
	}
}

func TestEmailBodyEscapes(t *testing.T) {
	q := &domain.ScheduledQuery{Name: "A <b>", Subject: ""}
	body, err := emailBody(q, "SELECT * FROM t WHERE a < 3", 0, runAt)
	require.NoError(t, err)
	assert.Contains(t, body, "A &lt;b&gt;")
	assert.Contains(t, body, "a &lt; 3")
	assert.NotContains(t, body, "<p></p>")
	assert.Equal(t, "Scheduled Query Results: A <b>", subjectFor(q))
}
