// Package conversation owns the turn loop: it drives N rounds of
// exchanges between two model endpoints, synthesizes per-turn system
// prompts, applies role-swapping per mode, and handles retry and
// fatal-error reporting.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/instruction"
	"github.com/parleylab/parley/pkg/llms"
	"github.com/parleylab/parley/pkg/logger"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/observability"
	"github.com/parleylab/parley/pkg/protocol"
	"github.com/parleylab/parley/pkg/ratelimit"
	"github.com/parleylab/parley/pkg/transcript"
)

const (
	// maxRetries bounds connection-failure retries per client call.
	maxRetries = 2
	// retryBaseDelay scales the linear backoff (5s, 10s).
	retryBaseDelay = 5 * time.Second
)

// minimalInstruction is the fixed system prompt for no-meta-prompting.
var minimalInstruction = fmt.Sprintf(
	"You are a helpful assistant. Think step by step as needed. RESTRICT OUTPUTS TO APPROX %d tokens",
	instruction.MinimalTokensPerTurn,
)

// ClientFactory builds a backend client for a catalog model id.
type ClientFactory func(modelID string, spec config.ModelSpec) (llms.Client, error)

// RunParams configures one conversation run.
type RunParams struct {
	InitialPrompt string
	HumanModel    string
	AIModel       string
	Rounds        int

	// HumanInstruction and AIInstruction seed the first turn of each
	// side; later turns are synthesized adaptively.
	HumanInstruction string
	AIInstruction    string

	// FilePath optionally attaches a media file to the first user turn.
	FilePath string
}

// RunContext identifies one conversation run. It is returned alongside
// the history and handed to downstream consumers such as the arbiter.
type RunContext struct {
	ID         string
	Mode       config.Mode
	Goal       string
	HumanModel string
	AIModel    string
}

// Manager drives conversations in a single mode. Client instances are
// created lazily per model id and cached until cleanup.
type Manager struct {
	mode      config.Mode
	cfg       *config.DiscussionConfig
	instr     *instruction.Manager
	pacer     *ratelimit.Pacer
	metrics   *observability.Metrics
	media     *media.Handler
	artifacts *transcript.Writer
	factory   ClientFactory
	sleep     func(context.Context, time.Duration) error

	mu                 sync.Mutex
	clientMap          map[string]llms.Client
	initializedClients map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithClientFactory replaces the backend client factory.
func WithClientFactory(factory ClientFactory) Option {
	return func(m *Manager) { m.factory = factory }
}

// WithPacer replaces the request pacer.
func WithPacer(p *ratelimit.Pacer) Option {
	return func(m *Manager) { m.pacer = p }
}

// WithMetrics attaches a metric set.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithArtifactWriter replaces the transcript writer.
func WithArtifactWriter(w *transcript.Writer) Option {
	return func(m *Manager) { m.artifacts = w }
}

// WithTemplates replaces the instruction template registry.
func WithTemplates(reg *instruction.TemplateRegistry) Option {
	return func(m *Manager) { m.instr = instruction.NewManager(m.mode, reg) }
}

// WithSleep replaces the retry backoff sleep. Tests use this.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(m *Manager) { m.sleep = sleep }
}

// NewManager builds a Manager for one mode.
func NewManager(mode config.Mode, cfg *config.DiscussionConfig, opts ...Option) (*Manager, error) {
	templates, err := instruction.DefaultTemplateRegistry()
	if err != nil {
		return nil, err
	}

	outputDir := "."
	if cfg != nil {
		outputDir = cfg.OutputDir
	}

	m := &Manager{
		mode:               mode,
		cfg:                cfg,
		instr:              instruction.NewManager(mode, templates),
		pacer:              ratelimit.New(ratelimit.DefaultMinDelay),
		media:              media.NewHandler(),
		artifacts:          transcript.NewWriter(outputDir),
		factory:            llms.NewClient,
		sleep:              sleepCtx,
		clientMap:          make(map[string]llms.Client),
		initializedClients: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// FromConfig loads a discussion config and builds a Manager for its mode.
func FromConfig(configPath string, opts ...Option) (*Manager, *config.DiscussionConfig, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	m, err := NewManager(config.Mode(cfg.Mode), cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

// EnsureClient returns the cached client for a model id, creating it on
// first use.
func (m *Manager) EnsureClient(modelID string) (llms.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clientMap[modelID]; ok {
		return client, nil
	}

	var spec config.ModelSpec
	if m.cfg != nil {
		for _, s := range m.cfg.Models {
			if s.Type == modelID {
				spec = s
				break
			}
		}
	}

	client, err := m.factory(modelID, spec)
	if err != nil {
		return nil, err
	}
	m.clientMap[modelID] = client
	m.initializedClients[modelID] = struct{}{}
	return client, nil
}

// CleanupUnusedClients closes and forgets all cached clients.
func (m *Manager) CleanupUnusedClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clientMap {
		if err := client.Close(); err != nil {
			logger.GetLogger().Warn("failed to close client", "model", id, "error", err)
		}
	}
	m.clientMap = make(map[string]llms.Client)
	m.initializedClients = make(map[string]struct{})
}

// RunConversation executes the full turn loop and returns the run's
// identifying context with the finished history. Connection failures
// are retried; on exhaustion a fatal report artifact is written and a
// degraded history is returned with the error.
func (m *Manager) RunConversation(ctx context.Context, params RunParams) (RunContext, []protocol.Message, error) {
	log := logger.GetLogger()
	run := RunContext{
		ID:         uuid.NewString(),
		Mode:       m.mode,
		Goal:       params.InitialPrompt,
		HumanModel: params.HumanModel,
		AIModel:    params.AIModel,
	}

	coreTopic := ExtractCoreTopic(params.InitialPrompt)
	history := []protocol.Message{{Role: protocol.RoleSystem, Content: coreTopic}}

	var attachment *media.Attachment
	if params.FilePath != "" {
		att, err := m.media.Process(params.FilePath)
		if err != nil {
			return run, nil, fmt.Errorf("failed to ingest attachment: %w", err)
		}
		attachment = att
	}

	log.Info("starting conversation",
		"run", run.ID, "mode", m.mode, "rounds", params.Rounds,
		"human", params.HumanModel, "ai", params.AIModel)

	lastResponse := coreTopic

	for round := 0; round < params.Rounds; round++ {
		for _, role := range []protocol.Role{protocol.RoleUser, protocol.RoleAssistant} {
			modelID := params.AIModel
			if role == protocol.RoleUser {
				modelID = params.HumanModel
			}

			systemInstruction := m.systemInstruction(history, coreTopic, role, round, params)
			historyForClient := m.historyForClient(history, role)

			req := llms.Request{
				Prompt:            lastResponse,
				SystemInstruction: systemInstruction,
				History:           historyForClient,
				Role:              role,
				Mode:              m.mode,
			}

			var turnAttachment *media.Attachment
			if attachment != nil && role == protocol.RoleUser && round == 0 {
				turnAttachment = attachment
				if !config.DetectCapabilities(modelID).Vision {
					turnAttachment = media.TextStub(turnAttachment)
				}
				req.Prompt = media.ContextLine(turnAttachment) + "\n\n" + req.Prompt
				req.Attachment = turnAttachment
			}

			response, err := m.callWithRetry(ctx, modelID, req)
			if err != nil {
				class := llms.Classify(err)
				m.metrics.ObserveClientError(string(class), modelID)

				if class == llms.NonFatal {
					// Non-fatal failures become part of the record and
					// the conversation continues.
					errText := fmt.Sprintf("Error with %s: %v", modelID, err)
					history = append(history, protocol.Message{Role: protocol.RoleSystem, Content: errText})
					history = append(history, protocol.Message{Role: role, Content: errText})
					lastResponse = errText
					continue
				}

				m.writeFatalReport(err, modelID, role, coreTopic, len(history))

				if class == llms.FatalConnection {
					degraded := []protocol.Message{
						{Role: protocol.RoleSystem, Content: params.InitialPrompt},
						{Role: protocol.RoleSystem, Content: fmt.Sprintf(
							"ERROR: %v – conversation could not be completed.", err)},
					}
					return run, degraded, err
				}
				return run, history, err
			}

			history = append(history, protocol.Message{
				Role:       role,
				Content:    response,
				Attachment: turnAttachment,
			})
			lastResponse = response
			m.metrics.ObserveTurn(string(m.mode), string(role))
		}
	}

	m.metrics.ObserveConversation(string(m.mode))
	log.Info("conversation complete", "run", run.ID, "messages", len(history))
	return run, history, nil
}

// RunConversationWithFile is RunConversation with a media attachment on
// the first user turn.
func (m *Manager) RunConversationWithFile(ctx context.Context, params RunParams, filePath string) (RunContext, []protocol.Message, error) {
	params.FilePath = filePath
	return m.RunConversation(ctx, params)
}

// systemInstruction computes the per-turn system prompt.
func (m *Manager) systemInstruction(history []protocol.Message, coreTopic string, role protocol.Role, round int, params RunParams) string {
	if m.mode == config.ModeNoMetaPrompting {
		return minimalInstruction
	}

	// Seed instructions take the first turn of each side.
	if round == 0 {
		if role == protocol.RoleUser && params.HumanInstruction != "" {
			return params.HumanInstruction
		}
		if role == protocol.RoleAssistant && params.AIInstruction != "" {
			return params.AIInstruction
		}
	}

	return m.instr.GenerateInstructions(history, coreTopic, role)
}

// historyForClient prepares the defensive copy handed to the client.
// In human-aiai mode the user side sees a role-swapped copy; everyone
// else sees the natural order.
func (m *Manager) historyForClient(history []protocol.Message, role protocol.Role) []protocol.Message {
	if m.mode == config.ModeHumanAIAI && role == protocol.RoleUser {
		return protocol.SwapRoles(history)
	}
	return protocol.CopyHistory(history)
}

// callWithRetry performs one rate-limited client call, retrying
// connection failures with linear backoff (5s, then 10s).
func (m *Manager) callWithRetry(ctx context.Context, modelID string, req llms.Request) (string, error) {
	client, err := m.EnsureClient(modelID)
	if err != nil {
		return "", err
	}

	log := logger.GetLogger()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * retryBaseDelay
			log.Warn("connection failure, retrying conversation turn",
				"model", modelID, "attempt", attempt, "delay", delay)
			m.metrics.ObserveRetry()
			if err := m.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		if err := m.pacer.Wait(ctx); err != nil {
			return "", err
		}

		start := time.Now()
		response, err := client.GenerateResponse(ctx, req)
		m.metrics.ObserveRequest(modelID, time.Since(start).Seconds())

		if err == nil {
			return response, nil
		}
		lastErr = err

		if llms.Classify(err) != llms.FatalConnection {
			return "", err
		}
	}

	return "", lastErr
}

// writeFatalReport persists the fatal error artifact. Failures to write
// the report are logged, not propagated.
func (m *Manager) writeFatalReport(cause error, modelID string, role protocol.Role, domain string, messageCount int) {
	path, err := m.artifacts.SaveFatal(transcript.FatalReport{
		Message:      cause.Error(),
		Model:        modelID,
		Role:         string(role),
		Mode:         string(m.mode),
		Domain:       domain,
		MessageCount: messageCount,
		Details:      fmt.Sprintf("%+v", cause),
	})
	if err != nil {
		logger.GetLogger().Error("failed to write fatal error report", "error", err)
		return
	}
	logger.GetLogger().Error("fatal error report written", "path", path, "cause", cause)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
