// Package orchestrator drives one chat turn through the Foundry agent
// runtime: ephemeral agent, thread, run, tool-call dispatch, and reply
// collection.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"geniebot/internal/blobstore"
	"geniebot/internal/domain"
	"geniebot/internal/foundry"
	"geniebot/internal/tools"
	"geniebot/policy"
)

const agentName = "genie-data-analyst"

// agentInstructions is the persona given to every ephemeral agent.
const agentInstructions = `You are a data analyst assistant.
Use the ask_genie tool to answer any question about data in the workspace.
Pass the user's question through to ask_genie unchanged, and reuse the
conversation_id returned by earlier calls so follow-up questions keep their
context. When the tool returns tabular data, summarize the key findings in
plain language and, if a chart would help, use the code interpreter to render
one. Never invent figures that the tool did not return.`

// runtimeClient is the slice of the Foundry client the orchestrator needs.
type runtimeClient interface {
	CreateAgent(ctx context.Context, req foundry.CreateAgentRequest) (*foundry.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
	CreateThread(ctx context.Context) (*foundry.Thread, error)
	CreateMessage(ctx context.Context, threadID, role, content string) (*foundry.Message, error)
	ListMessages(ctx context.Context, threadID, runID string) ([]foundry.Message, error)
	FileContent(ctx context.Context, fileID string) ([]byte, error)
}

// Result is the rendered outcome of one turn.
type Result struct {
	Text      string
	ImageName string
}

// Orchestrator executes chat turns against the agent runtime.
type Orchestrator struct {
	client    runtimeClient
	runtime   foundry.Runtime
	gate      *policy.Engine
	sink      blobstore.Sink
	model     string
	imagesDir string
	log       zerolog.Logger
}

// New creates an orchestrator. model is the chat model deployment name;
// imagesDir is the local scratch directory for generated visualizations.
func New(client *foundry.Client, runtime foundry.Runtime, gate *policy.Engine, sink blobstore.Sink, model, imagesDir string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		runtime:   runtime,
		gate:      gate,
		sink:      sink,
		model:     model,
		imagesDir: imagesDir,
		log:       logger,
	}
}

// ProcessMessage runs one user question through a fresh ephemeral agent armed
// with the registry's tools. A cancelled run returns an empty Result and no
// error; a failed run returns an error.
func (o *Orchestrator) ProcessMessage(ctx context.Context, question string, registry *tools.Registry) (*Result, error) {
	defs := registry.Definitions()
	agentTools := make([]foundry.ToolDefinition, 0, len(defs)+1)
	for _, def := range defs {
		agentTools = append(agentTools, foundry.FunctionTool(def))
	}
	agentTools = append(agentTools, foundry.CodeInterpreterTool())

	agent, err := o.client.CreateAgent(ctx, foundry.CreateAgentRequest{
		Model:        o.model,
		Name:         agentName,
		Instructions: agentInstructions,
		Tools:        agentTools,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		// Cleanup must run even when the turn's context is already dead.
		cleanupCtx := context.WithoutCancel(ctx)
		if err := o.client.DeleteAgent(cleanupCtx, agent.ID); err != nil {
			o.log.Error().Err(err).Str("agent_id", agent.ID).Msg("agent cleanup failed")
		}
	}()

	thread, err := o.client.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := o.client.CreateMessage(ctx, thread.ID, "user", question); err != nil {
		return nil, err
	}

	run, err := o.runtime.ExecuteRun(ctx, thread.ID, agent.ID, o.invoker(registry))
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case foundry.RunStatusCompleted:
		return o.collectReply(ctx, thread.ID, run.ID)
	case foundry.RunStatusCancelled:
		return &Result{}, nil
	default:
		reason := string(run.Status)
		if run.LastError != nil {
			reason = fmt.Sprintf("%s: %s (%s)", run.Status, run.LastError.Message, run.LastError.Code)
		}
		return nil, &domain.ServiceError{Service: "foundry", Err: fmt.Errorf("run ended with status %s", reason)}
	}
}

// invoker builds the tool dispatcher for one run. Every outcome, including a
// policy block or executor failure, is returned as a correlated output so the
// run can always resume.
func (o *Orchestrator) invoker(registry *tools.Registry) foundry.ToolInvoker {
	return func(ctx context.Context, call foundry.ToolCall) foundry.ToolOutput {
		name := ""
		if call.Function != nil {
			name = call.Function.Name
		}
		logger := o.log.With().Str("tool", name).Str("tool_call_id", call.ID).Logger()

		decision, err := o.gate.Evaluate(ctx, map[string]interface{}{
			"tool_name": name,
		})
		if err != nil {
			logger.Error().Err(err).Msg("policy evaluation failed")
			return errorOutput(call.ID, "policy evaluation failed", err)
		}
		if decision != policy.DecisionAllow {
			logger.Warn().Str("decision", decision).Msg("tool call blocked by policy")
			return errorOutput(call.ID, fmt.Sprintf("tool %s is not permitted", name), nil)
		}

		out, err := registry.Execute(ctx, name, call.Args())
		if err != nil {
			logger.Error().Err(err).Msg("tool execution failed")
			return errorOutput(call.ID, fmt.Sprintf("tool %s failed", name), err)
		}
		return foundry.ToolOutput{ToolCallID: call.ID, Output: string(out)}
	}
}

// errorOutput encodes a tool failure as output data instead of dropping the
// call from the batch.
func errorOutput(toolCallID, msg string, cause error) foundry.ToolOutput {
	e := domain.QueryError{Error: msg}
	if cause != nil {
		e.Details = cause.Error()
	}
	encoded, err := json.Marshal(e)
	if err != nil {
		encoded = []byte(`{"error":"` + msg + `"}`)
	}
	return foundry.ToolOutput{ToolCallID: toolCallID, Output: string(encoded)}
}

// collectReply extracts the run's final assistant message: the first text
// block becomes the reply, and the first generated image is downloaded and
// published.
func (o *Orchestrator) collectReply(ctx context.Context, threadID, runID string) (*Result, error) {
	messages, err := o.client.ListMessages(ctx, threadID, runID)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, msg := range messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, item := range msg.Content {
			switch {
			case item.Text != nil && result.Text == "":
				result.Text = item.Text.Value
			case item.ImageFile != nil && result.ImageName == "":
				name, err := o.publishImage(ctx, item.ImageFile.FileID)
				if err != nil {
					return nil, err
				}
				result.ImageName = name
			}
		}
		break
	}
	return result, nil
}

// publishImage downloads a generated file, stages it locally, and uploads it
// to the sink. The returned name addresses the blob.
func (o *Orchestrator) publishImage(ctx context.Context, fileID string) (string, error) {
	content, err := o.client.FileContent(ctx, fileID)
	if err != nil {
		return "", err
	}

	name := fileID + "_image_file.png"
	localPath := filepath.Join(o.imagesDir, name)
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return "", fmt.Errorf("staging image %s: %w", name, err)
	}
	if err := o.sink.Upload(ctx, localPath, name); err != nil {
		return "", err
	}
	o.log.Info().Str("image", name).Msg("visualization published")
	return name, nil
}
