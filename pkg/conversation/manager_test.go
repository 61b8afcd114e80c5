package conversation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleylab/parley/pkg/config"
	"github.com/parleylab/parley/pkg/llms"
	"github.com/parleylab/parley/pkg/media"
	"github.com/parleylab/parley/pkg/protocol"
	"github.com/parleylab/parley/pkg/ratelimit"
	"github.com/parleylab/parley/pkg/transcript"
)

// scriptedClient replays a response function and records every request.
type scriptedClient struct {
	mu       sync.Mutex
	model    string
	script   func(call int, req llms.Request) (string, error)
	requests []llms.Request
}

func (c *scriptedClient) GenerateResponse(_ context.Context, req llms.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	call := len(c.requests)
	c.mu.Unlock()
	return c.script(call, req)
}

func (c *scriptedClient) TestConnection(context.Context) error { return nil }
func (c *scriptedClient) ModelName() string                    { return c.model }
func (c *scriptedClient) Close() error                         { return nil }

func echoScript(prefix string) func(int, llms.Request) (string, error) {
	return func(call int, _ llms.Request) (string, error) {
		return fmt.Sprintf("%s-%d", prefix, call), nil
	}
}

type testRig struct {
	manager *Manager
	human   *scriptedClient
	ai      *scriptedClient
	sleeps  []time.Duration
}

func newRig(t *testing.T, mode config.Mode, opts ...Option) *testRig {
	t.Helper()

	rig := &testRig{
		human: &scriptedClient{model: "human-model", script: echoScript("human")},
		ai:    &scriptedClient{model: "ai-model", script: echoScript("ai")},
	}

	factory := func(modelID string, _ config.ModelSpec) (llms.Client, error) {
		switch modelID {
		case "human-model":
			return rig.human, nil
		case "ai-model":
			return rig.ai, nil
		}
		return nil, fmt.Errorf("unknown model id %q", modelID)
	}

	// A pacer on a fake clock keeps the test instant.
	pacer := ratelimit.New(time.Second, ratelimit.WithClock(
		func() time.Time { return time.Unix(0, 0) },
		func(context.Context, time.Duration) error { return nil },
	))

	base := []Option{
		WithClientFactory(factory),
		WithPacer(pacer),
		WithSleep(func(_ context.Context, d time.Duration) error {
			rig.sleeps = append(rig.sleeps, d)
			return nil
		}),
		WithArtifactWriter(transcript.NewWriter(t.TempDir())),
	}

	manager, err := NewManager(mode, nil, append(base, opts...)...)
	require.NoError(t, err)
	rig.manager = manager
	return rig
}

func baseParams() RunParams {
	return RunParams{
		InitialPrompt: "Topic: the ethics of automation",
		HumanModel:    "human-model",
		AIModel:       "ai-model",
		Rounds:        2,
	}
}

func TestRunConversationHappyPath(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)

	run, history, err := rig.manager.RunConversation(context.Background(), baseParams())
	require.NoError(t, err)

	// The run context identifies the finished conversation.
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, config.ModeAIAI, run.Mode)
	assert.Equal(t, "Topic: the ethics of automation", run.Goal)
	assert.Equal(t, "human-model", run.HumanModel)
	assert.Equal(t, "ai-model", run.AIModel)

	// System topic plus user/assistant per round.
	require.Len(t, history, 5)
	assert.Equal(t, protocol.RoleSystem, history[0].Role)
	assert.Equal(t, "Discuss: the ethics of automation", history[0].Content)

	wantRoles := []protocol.Role{protocol.RoleUser, protocol.RoleAssistant, protocol.RoleUser, protocol.RoleAssistant}
	wantContents := []string{"human-1", "ai-1", "human-2", "ai-2"}
	for i, msg := range history[1:] {
		assert.Equal(t, wantRoles[i], msg.Role, "message %d", i+1)
		assert.Equal(t, wantContents[i], msg.Content, "message %d", i+1)
	}

	// Each side responds to the other's latest output.
	assert.Equal(t, "Discuss: the ethics of automation", rig.human.requests[0].Prompt)
	assert.Equal(t, "human-1", rig.ai.requests[0].Prompt)
	assert.Equal(t, "ai-1", rig.human.requests[1].Prompt)
	assert.Empty(t, rig.sleeps)
}

func TestRunConversationRetriesConnectionFailure(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)
	rig.human.script = func(call int, _ llms.Request) (string, error) {
		if call <= 2 {
			return "", errors.New("dial tcp: connection refused")
		}
		return "recovered", nil
	}

	params := baseParams()
	params.Rounds = 1
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	require.NoError(t, err)

	// Two failures, then success: three invocations total.
	assert.Len(t, rig.human.requests, 3)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, rig.sleeps)

	require.Len(t, history, 3)
	assert.Equal(t, "recovered", history[1].Content)
}

func TestRunConversationConnectionExhaustion(t *testing.T) {
	artifactDir := t.TempDir()
	rig := newRig(t, config.ModeHumanAIAI,
		WithArtifactWriter(transcript.NewWriter(artifactDir)))
	rig.human.script = func(int, llms.Request) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}

	params := baseParams()
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	require.Error(t, err)

	// Initial and retried attempts, then the turn aborts.
	assert.Len(t, rig.human.requests, 3)
	assert.Empty(t, rig.ai.requests)

	// The degraded history preserves the prompt and records the failure.
	require.Len(t, history, 2)
	assert.Equal(t, protocol.RoleSystem, history[0].Role)
	assert.Equal(t, params.InitialPrompt, history[0].Content)
	assert.Equal(t, protocol.RoleSystem, history[1].Role)
	assert.Contains(t, history[1].Content, "ERROR:")
	assert.Contains(t, history[1].Content, "conversation could not be completed.")

	// A fatal report artifact lands next to the transcripts.
	entries, readErr := os.ReadDir(artifactDir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "fatal_error_"))
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".html"))
}

func TestRunConversationNonFatalContinues(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)
	rig.human.script = func(int, llms.Request) (string, error) {
		return "", errors.New("API request failed with status 400: malformed")
	}

	params := baseParams()
	params.Rounds = 1
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	require.NoError(t, err)

	// One attempt only: non-fatal errors are not retried.
	assert.Len(t, rig.human.requests, 1)
	assert.Empty(t, rig.sleeps)

	// The failure is recorded twice and the assistant still gets a turn.
	require.Len(t, history, 4)
	assert.Equal(t, protocol.RoleSystem, history[1].Role)
	assert.Contains(t, history[1].Content, "Error with human-model:")
	assert.Equal(t, protocol.RoleUser, history[2].Role)
	assert.Equal(t, history[1].Content, history[2].Content)
	assert.Equal(t, protocol.RoleAssistant, history[3].Role)
	assert.Equal(t, "ai-1", history[3].Content)

	// The assistant sees the error text as its prompt.
	assert.Equal(t, history[1].Content, rig.ai.requests[0].Prompt)
}

func TestRunConversationHumanAIAIRoleSwap(t *testing.T) {
	rig := newRig(t, config.ModeHumanAIAI)

	_, _, err := rig.manager.RunConversation(context.Background(), baseParams())
	require.NoError(t, err)

	// Second human turn: history is [system, user, assistant] and the
	// human-persona side sees it swapped so its own words read as the
	// assistant's.
	require.Len(t, rig.human.requests, 2)
	swapped := rig.human.requests[1].History
	require.Len(t, swapped, 3)
	assert.Equal(t, protocol.RoleSystem, swapped[0].Role)
	assert.Equal(t, protocol.RoleAssistant, swapped[1].Role)
	assert.Equal(t, "human-1", swapped[1].Content)
	assert.Equal(t, protocol.RoleUser, swapped[2].Role)
	assert.Equal(t, "ai-1", swapped[2].Content)

	// The assistant side sees the natural order.
	require.Len(t, rig.ai.requests, 2)
	natural := rig.ai.requests[1].History
	assert.Equal(t, protocol.RoleUser, natural[1].Role)
	assert.Equal(t, protocol.RoleAssistant, natural[2].Role)
}

func TestRunConversationNoMetaPrompting(t *testing.T) {
	rig := newRig(t, config.ModeNoMetaPrompting)

	_, _, err := rig.manager.RunConversation(context.Background(), baseParams())
	require.NoError(t, err)

	for _, req := range append(rig.human.requests, rig.ai.requests...) {
		assert.Equal(t, minimalInstruction, req.SystemInstruction)
		assert.Contains(t, req.SystemInstruction, "RESTRICT OUTPUTS TO APPROX 2048 tokens")
	}
}

func TestRunConversationSeedInstructions(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)

	params := baseParams()
	params.HumanInstruction = "seed for the prompter"
	params.AIInstruction = "seed for the responder"

	_, _, err := rig.manager.RunConversation(context.Background(), params)
	require.NoError(t, err)

	// Seeds apply to the first round only; later turns are synthesized.
	assert.Equal(t, "seed for the prompter", rig.human.requests[0].SystemInstruction)
	assert.Equal(t, "seed for the responder", rig.ai.requests[0].SystemInstruction)
	assert.NotEqual(t, "seed for the prompter", rig.human.requests[1].SystemInstruction)
	assert.NotEmpty(t, rig.human.requests[1].SystemInstruction)
}

func TestRunConversationAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("observations"), 0644))

	rig := newRig(t, config.ModeAIAI)

	params := baseParams()
	params.FilePath = path
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	require.NoError(t, err)

	// The first human call carries the attachment and a context line.
	first := rig.human.requests[0]
	require.NotNil(t, first.Attachment)
	assert.Equal(t, "observations", first.Attachment.TextContent)
	assert.True(t, strings.HasPrefix(first.Prompt, "Analyzing text file: "))

	// Later calls do not resend it.
	assert.Nil(t, rig.human.requests[1].Attachment)
	assert.Nil(t, rig.ai.requests[0].Attachment)

	// The recorded first user message keeps the attachment reference.
	assert.NotNil(t, history[1].Attachment)
	assert.Nil(t, history[3].Attachment)
}

func TestRunConversationVisionDowngrade(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, png, 0644))

	// The rig's model ids carry no vision capability, so the image is
	// replaced by a textual placeholder before the call.
	rig := newRig(t, config.ModeAIAI)

	params := baseParams()
	params.Rounds = 1
	params.FilePath = path
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	require.NoError(t, err)

	first := rig.human.requests[0]
	require.NotNil(t, first.Attachment)
	assert.Equal(t, media.KindText, first.Attachment.Kind)
	assert.Contains(t, first.Attachment.TextContent, "This is an image")
	assert.Empty(t, first.Attachment.Base64)
	assert.True(t, strings.HasPrefix(first.Prompt, "Analyzing text file: "))

	require.NotNil(t, history[1].Attachment)
	assert.Equal(t, media.KindText, history[1].Attachment.Kind)
}

func TestRunConversationVisionKept(t *testing.T) {
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, make([]byte, 32)...)
	path := filepath.Join(t.TempDir(), "chart.png")
	require.NoError(t, os.WriteFile(path, png, 0644))

	human := &scriptedClient{model: "gpt-4o", script: echoScript("human")}
	ai := &scriptedClient{model: "claude-3-haiku", script: echoScript("ai")}
	factory := func(modelID string, _ config.ModelSpec) (llms.Client, error) {
		if modelID == "gpt-4o" {
			return human, nil
		}
		return ai, nil
	}
	pacer := ratelimit.New(time.Second, ratelimit.WithClock(
		func() time.Time { return time.Unix(0, 0) },
		func(context.Context, time.Duration) error { return nil },
	))
	manager, err := NewManager(config.ModeAIAI, nil,
		WithClientFactory(factory),
		WithPacer(pacer),
		WithArtifactWriter(transcript.NewWriter(t.TempDir())))
	require.NoError(t, err)

	_, _, err = manager.RunConversation(context.Background(), RunParams{
		InitialPrompt: "Topic: chart review",
		HumanModel:    "gpt-4o",
		AIModel:       "claude-3-haiku",
		Rounds:        1,
		FilePath:      path,
	})
	require.NoError(t, err)

	// A vision-capable model keeps the image payload.
	first := human.requests[0]
	require.NotNil(t, first.Attachment)
	assert.Equal(t, media.KindImage, first.Attachment.Kind)
	assert.NotEmpty(t, first.Attachment.Base64)
	assert.True(t, strings.HasPrefix(first.Prompt, "Analyzing image file: "))
}

func TestRunConversationMissingAttachment(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)

	params := baseParams()
	params.FilePath = filepath.Join(t.TempDir(), "absent.bin")
	_, history, err := rig.manager.RunConversation(context.Background(), params)
	assert.Error(t, err)
	assert.Nil(t, history)
	assert.Empty(t, rig.human.requests)
}

func TestEnsureClientCachesAndCleanup(t *testing.T) {
	var built int
	factory := func(modelID string, _ config.ModelSpec) (llms.Client, error) {
		built++
		return &scriptedClient{model: modelID, script: echoScript("x")}, nil
	}

	manager, err := NewManager(config.ModeAIAI, nil, WithClientFactory(factory))
	require.NoError(t, err)

	first, err := manager.EnsureClient("human-model")
	require.NoError(t, err)
	second, err := manager.EnsureClient("human-model")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)

	manager.CleanupUnusedClients()
	_, err = manager.EnsureClient("human-model")
	require.NoError(t, err)
	assert.Equal(t, 2, built)
}

func TestCallWithRetryCancelled(t *testing.T) {
	rig := newRig(t, config.ModeAIAI)
	rig.human.script = func(int, llms.Request) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rig.manager.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := rig.manager.callWithRetry(ctx, "human-model", llms.Request{Prompt: "x"})
	require.ErrorIs(t, err, context.Canceled)
	// One attempt, then the retry backoff observes cancellation.
	assert.Len(t, rig.human.requests, 1)
}
