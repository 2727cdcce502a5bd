package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dreschagin/dbops-agent/internal/application/dto"
	"github.com/dreschagin/dbops-agent/internal/application/port"
	"github.com/dreschagin/dbops-agent/internal/domain/entity"
	"github.com/dreschagin/dbops-agent/internal/domain/repository"
	"github.com/dreschagin/dbops-agent/internal/domain/valueobject"
	"github.com/dreschagin/dbops-agent/pkg/logger"
)

var (
	ErrTaskExists   = errors.New("task already exists")
	ErrTaskNotFound = errors.New("task not found")
)

const (
	tickInterval   = time.Second
	panicCooldown  = 10 * time.Second
	stopTimeout    = 5 * time.Second
	journalTimeout = 5 * time.Second
)

// Job выполняемая работа задачи. Непустой result попадает в лог и журнал.
type Job interface {
	Run(ctx context.Context) (interface{}, error)
}

// JobFunc адаптер функции к Job
type JobFunc func(ctx context.Context) (interface{}, error)

// Run вызывает f(ctx)
func (f JobFunc) Run(ctx context.Context) (interface{}, error) {
	return f(ctx)
}

// Monitor жизненный цикл движка мониторинга, которым управляет планировщик
type Monitor interface {
	Start()
	Stop()
	IsActive() bool
}

type registeredTask struct {
	task *entity.Task
	job  Job
}

// Scheduler запускает зарегистрированные задачи по их cadence
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*registeredTask
	armed map[string]time.Time

	monitor           Monitor
	monitoringEnabled bool
	runs              repository.TaskRunRepository
	events            port.EventPublisher
	notifier          port.NotificationService
	telemetry         port.Telemetry
	logger            *logger.Logger

	stateMu   sync.Mutex
	running   bool
	stop      chan struct{}
	done      chan struct{}
	jobCtx    context.Context
	jobCancel context.CancelFunc

	manual sync.WaitGroup

	tick     time.Duration
	cooldown time.Duration
	now      func() time.Time
}

// NewScheduler создает планировщик
func NewScheduler(
	monitor Monitor, // Can be nil
	monitoringEnabled bool,
	runs repository.TaskRunRepository, // Can be nil if DynamoDB disabled
	events port.EventPublisher, // Can be nil if NATS disabled
	notifier port.NotificationService, // Can be nil
	telemetry port.Telemetry, // Can be nil
	logger *logger.Logger,
) *Scheduler {
	return &Scheduler{
		tasks:             make(map[string]*registeredTask),
		armed:             make(map[string]time.Time),
		monitor:           monitor,
		monitoringEnabled: monitoringEnabled,
		runs:              runs,
		events:            events,
		notifier:          notifier,
		telemetry:         telemetry,
		logger:            logger,
		tick:              tickInterval,
		cooldown:          panicCooldown,
		now:               time.Now,
	}
}

// AddTask регистрирует задачу. Дубликат id отклоняется с ErrTaskExists.
func (s *Scheduler) AddTask(id, name string, job Job, cadence valueobject.Cadence, enabled bool) error {
	if job == nil {
		return fmt.Errorf("task %s: job is required", id)
	}
	task, err := entity.NewTask(id, name, cadence, enabled)
	if err != nil {
		return fmt.Errorf("invalid task %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, id)
	}
	s.tasks[id] = &registeredTask{task: task, job: job}
	if enabled {
		s.armLocked(task, s.now())
	}

	s.logger.Info("Task registered", "task_id", id, "schedule", cadence.String(), "enabled", enabled)
	if s.telemetry != nil {
		s.telemetry.SetTaskEnabled(id, enabled)
	}
	return nil
}

// RemoveTask снимает задачу с расписания и удаляет ее
func (s *Scheduler) RemoveTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.armed, id)
	delete(s.tasks, id)

	s.logger.Info("Task removed", "task_id", id)
	return true
}

// EnableTask включает задачу и заново ставит ее на расписание от текущего момента
func (s *Scheduler) EnableTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.tasks[id]
	if !ok {
		return false
	}
	reg.task.SetEnabled(true)
	s.armLocked(reg.task, s.now())

	s.logger.Info("Task enabled", "task_id", id)
	if s.telemetry != nil {
		s.telemetry.SetTaskEnabled(id, true)
	}
	return true
}

// DisableTask снимает задачу с расписания
func (s *Scheduler) DisableTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.tasks[id]
	if !ok {
		return false
	}
	reg.task.SetEnabled(false)
	delete(s.armed, id)

	s.logger.Info("Task disabled", "task_id", id)
	if s.telemetry != nil {
		s.telemetry.SetTaskEnabled(id, false)
	}
	return true
}

// ToggleTask переключает задачу и возвращает новое состояние
func (s *Scheduler) ToggleTask(id string) (bool, error) {
	s.mu.Lock()
	reg, ok := s.tasks[id]
	var enabled bool
	if ok {
		enabled = reg.task.Enabled()
	}
	s.mu.Unlock()

	if !ok {
		return false, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if enabled {
		s.DisableTask(id)
		return false, nil
	}
	s.EnableTask(id)
	return true, nil
}

// armLocked вызывается под s.mu
func (s *Scheduler) armLocked(task *entity.Task, now time.Time) {
	s.armed[task.ID()] = task.Cadence().Next(now)
}

// RunNow запускает задачу вне расписания в отдельной goroutine
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	_, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	ctx := s.jobContext()
	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.execute(ctx, id, true)
	}()

	s.logger.Info("Task run requested", "task_id", id)
	return nil
}

// RunSync выполняет задачу синхронно (oneshot режим)
func (s *Scheduler) RunSync(ctx context.Context, id string) (*entity.TaskRun, error) {
	s.mu.Lock()
	_, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return s.execute(ctx, id, true), nil
}

// Wait ждет завершения ручных запусков
func (s *Scheduler) Wait() {
	s.manual.Wait()
}

// Start запускает цикл планировщика и движок мониторинга, если он включен
func (s *Scheduler) Start() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.running {
		s.logger.Warn("Scheduler is already active")
		return
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.jobCtx, s.jobCancel = context.WithCancel(context.Background())
	go s.loop(s.jobCtx, s.stop, s.done)

	if s.monitor != nil && s.monitoringEnabled {
		s.monitor.Start()
	}

	s.logger.Info("Scheduler started")
}

// Stop останавливает цикл (ожидание не дольше 5 секунд) и всегда останавливает мониторинг.
// Остановка best-effort: задача, игнорирующая ctx, может пережить таймаут, и Start,
// вызванный сразу после, запустит новый цикл параллельно с ней.
func (s *Scheduler) Stop() {
	s.stateMu.Lock()
	var done chan struct{}
	if s.running {
		close(s.stop)
		s.jobCancel()
		done = s.done
		s.running = false
	}
	s.stateMu.Unlock()

	// ждем без stateMu, чтобы IsActive и RunNow не блокировались
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			s.logger.Warn("Scheduler loop did not stop in time")
		}
		s.logger.Info("Scheduler stopped")
	}

	if s.monitor != nil {
		s.monitor.Stop()
	}
}

// IsActive сообщает, запущен ли цикл
func (s *Scheduler) IsActive() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.running
}

func (s *Scheduler) jobContext() context.Context {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.running && s.jobCtx != nil {
		return s.jobCtx
	}
	return context.Background()
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if s.safeRunPending(ctx) {
			continue
		}

		cooldown := time.NewTimer(s.cooldown)
		select {
		case <-stop:
			cooldown.Stop()
			return
		case <-cooldown.C:
		}
	}
}

func (s *Scheduler) safeRunPending(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler loop panicked", fmt.Errorf("%v", r))
			ok = false
		}
	}()
	s.runPending(ctx, s.now())
	return true
}

// runPending выполняет все задачи, срок которых наступил, в порядке id
func (s *Scheduler) runPending(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]string, 0)
	for id, next := range s.armed {
		if !now.Before(next) {
			due = append(due, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(due)

	for _, id := range due {
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		reg, ok := s.tasks[id]
		next, armed := s.armed[id]
		if !ok || !armed || now.Before(next) {
			s.mu.Unlock()
			continue
		}
		cadence := reg.task.Cadence()
		lastRun := reg.task.LastRun()
		s.mu.Unlock()

		if cadence.Kind() == valueobject.CadenceMonthly && !cadence.MonthlyDue(now, lastRun) {
			s.rearm(id)
			continue
		}

		s.execute(ctx, id, false)
		s.rearm(id)
	}
}

// rearm ставит задачу на следующий срок, если она еще включена
func (s *Scheduler) rearm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.tasks[id]
	if !ok || !reg.task.Enabled() {
		return
	}
	s.armLocked(reg.task, s.now())
}

// execute выполняет задачу и ведет учет запусков и ошибок
func (s *Scheduler) execute(ctx context.Context, id string, manual bool) *entity.TaskRun {
	s.mu.Lock()
	reg, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	started := s.now()
	reg.task.RecordStart(started)
	name := reg.task.Name()
	job := reg.job
	s.mu.Unlock()

	s.logger.Info("Running task", "task_id", id, "name", name, "manual", manual)

	run := entity.NewTaskRun(id, started, manual)
	result, err := invoke(ctx, job)
	finished := s.now()

	if err != nil {
		run.Fail(finished, err)

		s.mu.Lock()
		errorCount := reg.task.RecordFailure(err)
		trip := reg.task.ShouldTrip()
		s.mu.Unlock()

		s.logger.Error("Task failed", err, "task_id", id, "error_count", errorCount)
		if trip {
			s.logger.Error("Disabling task after too many errors", nil, "task_id", id, "error_count", errorCount)
			s.DisableTask(id)
			s.publish(port.SubjectTaskDisabled, dto.FromTaskRun(run))
		}
	} else {
		resultText := ""
		if result != nil {
			resultText = fmt.Sprint(result)
		}
		run.Succeed(finished, resultText)

		s.mu.Lock()
		reg.task.RecordSuccess()
		s.mu.Unlock()

		if result != nil {
			s.logger.Info("Task completed", "task_id", id, "result", resultText)
		} else {
			s.logger.Info("Task completed", "task_id", id)
		}
	}

	s.record(run)
	return run
}

func invoke(ctx context.Context, job Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// record пишет журнал, телеметрию и события. Ошибки не влияют на учет задачи.
func (s *Scheduler) record(run *entity.TaskRun) {
	if s.telemetry != nil {
		s.telemetry.ObserveTaskRun(run.TaskID, string(run.Outcome), run.Duration())
	}

	event := dto.FromTaskRun(run)
	if s.notifier != nil {
		s.notifier.BroadcastTask(event)
	}

	subject := port.SubjectTaskCompleted
	if run.Outcome == entity.RunFailed {
		subject = port.SubjectTaskFailed
	}
	s.publish(subject, event)

	if s.runs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := s.runs.Save(ctx, run); err != nil {
			s.logger.Warn("Failed to journal task run", "task_id", run.TaskID, "error", err.Error())
		}
	}
}

func (s *Scheduler) publish(subject string, event *dto.TaskEventDTO) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.events.PublishEvent(ctx, subject, event); err != nil {
		s.logger.Warn("Failed to publish task event", "subject", subject, "error", err.Error())
	}
}

// Status возвращает состояние планировщика и всех задач (по id)
func (s *Scheduler) Status() *dto.SchedulerStatusDTO {
	active := s.IsActive()

	s.mu.Lock()
	defer s.mu.Unlock()

	status := &dto.SchedulerStatusDTO{
		SchedulerActive: active,
		TotalTasks:      len(s.tasks),
		Tasks:           make([]dto.TaskStatusDTO, 0, len(s.tasks)),
	}

	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		task := s.tasks[id].task
		if task.Enabled() {
			status.EnabledTasks++
		}
		var nextRun *time.Time
		if next, ok := s.armed[id]; ok {
			n := next
			nextRun = &n
		}
		status.Tasks = append(status.Tasks, dto.FromTask(task, nextRun))
	}

	return status
}

// Task возвращает копию задачи
func (s *Scheduler) Task(id string) (*entity.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return reg.task.Clone(), true
}

type taskLogExport struct {
	ExportTimestamp string                  `json:"export_timestamp"`
	SchedulerStatus *dto.SchedulerStatusDTO `json:"scheduler_status"`
}

// ExportTaskLog пишет состояние планировщика в JSON
func (s *Scheduler) ExportTaskLog(w io.Writer) error {
	payload := taskLogExport{
		ExportTimestamp: s.now().Format(time.RFC3339),
		SchedulerStatus: s.Status(),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode task log: %w", err)
	}
	return nil
}

// ExportTaskLogFile пишет экспорт состояния планировщика в файл
func (s *Scheduler) ExportTaskLogFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create task log file: %w", err)
	}

	if err := s.ExportTaskLog(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close task log file: %w", err)
	}

	s.logger.Info("Task log exported", "path", path)
	return nil
}
