package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/dataask/dataask/core/application/execution"
	"github.com/dataask/dataask/core/application/report"
	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
	sharedcontext "github.com/dataask/dataask/core/shared/context"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// DefaultRunTimeout bounds a single scheduled run.
const DefaultRunTimeout = 10 * time.Minute

var errConnectionNotFound = errors.New("Connection not found")

// Executor runs a query request.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) (*execution.Result, error)
}

// Outcome is the result of one run, as persisted in the run state.
type Outcome struct {
	Status     domain.RunStatus `json:"status"`
	Error      string           `json:"error,omitempty"`
	RowCount   int              `json:"row_count"`
	ExecutedAt time.Time        `json:"executed_at"`
}

// Runner executes a scheduled query and emails the results.
type Runner struct {
	queries     interfaces.ScheduledQueryRepository
	connections interfaces.ConnectionRepository
	executor    Executor
	delivery    interfaces.DeliveryService
	timeout     time.Duration
	now         func() time.Time
	log         logger.Logger
}

// NewRunner creates a runner. A timeout <= 0 uses DefaultRunTimeout.
func NewRunner(
	queries interfaces.ScheduledQueryRepository,
	connections interfaces.ConnectionRepository,
	executor Executor,
	delivery interfaces.DeliveryService,
	timeout time.Duration,
) *Runner {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{
		queries:     queries,
		connections: connections,
		executor:    executor,
		delivery:    delivery,
		timeout:     timeout,
		now:         time.Now,
		log:         logger.New("scheduler:runner"),
	}
}

// Run is the scheduled entry point. Missing or disabled queries return nil
// without touching any state. Errors never escape; they end up in the run
// state of the query.
func (r *Runner) Run(ctx context.Context, id string) *Outcome {
	return r.run(ctx, id, false)
}

// RunNow runs id even when it is disabled.
func (r *Runner) RunNow(ctx context.Context, id string) *Outcome {
	return r.run(ctx, id, true)
}

func (r *Runner) run(ctx context.Context, id string, force bool) (out *Outcome) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ctx = sharedcontext.WithScheduledQueryID(ctx, id)
	if sharedcontext.GetRequestID(ctx) == "" {
		ctx = sharedcontext.WithRequestID(ctx, sharedcontext.GenerateRequestID())
	}
	log := observability.WithTrace(ctx, r.log)

	q, err := r.queries.Get(ctx, id)
	if err != nil || q == nil {
		if err != nil && !apperrors.IsNotFound(err) {
			log.Errorf("Failed to load scheduled query: %v", err)
		} else {
			log.Warnf("Scheduled query %s not found", id)
		}
		return nil
	}
	if !q.Enabled && !force {
		log.Infof("Scheduled query %s is disabled, skipping", id)
		return nil
	}

	log.Infof("Executing scheduled query: %s", q.Name)
	executedAt := r.now().UTC()
	rows := 0
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Panic in scheduled run: %v\n%s", p, debug.Stack())
			out = r.finish(ctx, log, q, executedAt, rows, fmt.Errorf("panic during scheduled run: %v", p))
		}
	}()

	err = r.execute(ctx, q, executedAt, &rows)
	return r.finish(ctx, log, q, executedAt, rows, err)
}

func (r *Runner) execute(ctx context.Context, q *domain.ScheduledQuery, executedAt time.Time, rows *int) error {
	conn, err := r.connections.Get(ctx, q.ConnectionID)
	if err != nil && !apperrors.IsNotFound(err) {
		return err
	}
	if conn == nil {
		return errConnectionNotFound
	}

	req := execution.Request{
		WorkspaceID:  q.WorkspaceID,
		ConnectionID: q.ConnectionID,
		UserID:       q.CreatedBy,
		Parameters:   q.Parameters,
		Limit:        domain.MaxRowLimit,
	}
	switch q.QueryType {
	case domain.QueryTypeVisual:
		if q.QueryDefinition == nil {
			return apperrors.Validation("scheduled query has no query definition")
		}
		def := q.QueryDefinition.Clone()
		if def.Limit == nil {
			def.Limit = domain.IntPtr(domain.MaxRowLimit)
		}
		req.Definition = &def
	case domain.QueryTypeSQL:
		req.SQL = q.SQL
	default:
		return apperrors.Validation("Unknown query type: %s", q.QueryType)
	}

	result, err := r.executor.Execute(ctx, req)
	if err != nil {
		return err
	}

	rs := domain.ToResultSet(result.Data)
	*rows = len(rs.Data)

	attachments := make([]interfaces.Attachment, 0, len(q.Format))
	for _, format := range q.Format {
		att, err := report.Render(format, q.Name, rs.Data, rs.Columns)
		if err != nil {
			return err
		}
		attachments = append(attachments, att)
	}

	body, err := emailBody(q, result.SQL, *rows, executedAt)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	return r.delivery.Send(ctx, interfaces.Message{
		To:          q.Recipients,
		Subject:     subjectFor(q),
		HTMLBody:    body,
		Attachments: attachments,
	})
}

// finish persists the run state. It uses a context detached from the run
// timeout so a timed out run still records its failure.
func (r *Runner) finish(ctx context.Context, log logger.Logger, q *domain.ScheduledQuery, executedAt time.Time, rows int, runErr error) *Outcome {
	out := &Outcome{Status: domain.RunSuccess, RowCount: rows, ExecutedAt: executedAt}
	state := domain.RunState{LastRunAt: executedAt, LastRunStatus: domain.RunSuccess}
	if runErr != nil {
		out.Status = domain.RunError
		out.Error = runErr.Error()
		state.LastRunStatus = domain.RunError
		state.LastRunError = out.Error
		log.Errorf("Error executing scheduled query %s: %v", q.ID, runErr)
	} else {
		log.Infof("Scheduled query %s delivered %d row(s) to %d recipient(s)", q.ID, rows, len(q.Recipients))
	}

	if err := r.queries.UpdateRunState(context.WithoutCancel(ctx), q.ID, state); err != nil {
		log.Errorf("Failed to update run state: %v", err)
	}
	observability.RecordScheduledRun(ctx, string(out.Status))
	return out
}
