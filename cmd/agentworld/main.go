package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agentworld"
	"agentworld/config"
	"agentworld/core"
	"agentworld/subscription"
	"agentworld/world"
)

var rootCmd = &cobra.Command{
	Use:   "agentworld",
	Short: "Agentworld CLI",
	Long: `Agentworld runs isolated multi-agent conversation worlds backed by LLM providers.
Core concepts:
- World: an isolated room with its own event bus, agents, chats and history; nothing leaks between worlds.
- Agent: an LLM-backed participant with a system prompt, a provider/model pair and its own working memory.
- Chat: a named conversation thread inside a world (default "main").
- Broadcast vs send: a broadcast reaches every eligible agent; a directed send reaches exactly one.
- Auto-reply: agents with auto-reply answer other agents too, bounded by the world's max-turns chain limit.
- Approvals: a pending approval parks its chat; human messages are rejected until someone responds.

Persistent worlds need a file or sqlite storage backend; the default in-memory
backend lasts for one command. Configuration is read from agentworld.yaml
(override with --config) and AGENTWORLD_* environment variables.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AGENTWORLD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("sender", "local-user", "sender name for messages and decisions")
	rootCmd.PersistentFlags().Bool("verbose", false, "log internal events to stdout")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("sender", rootCmd.PersistentFlags().Lookup("sender"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func registerCommands() {
	rootCmd.AddCommand(worldCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(approvalCmd())
}

func worldCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "world", Short: "Manage worlds"}
	cmd.AddCommand(worldCreateCmd())
	cmd.AddCommand(worldListCmd())
	cmd.AddCommand(worldShowCmd())
	cmd.AddCommand(worldDeleteCmd())
	return cmd
}

func worldCreateCmd() *cobra.Command {
	var p world.WorldParams
	var manifestPath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				if manifestPath != "" {
					m, err := world.LoadManifest(manifestPath)
					if err != nil {
						return err
					}
					if m.World.MaxTurns == 0 {
						m.World.MaxTurns = cfg.Limits.MaxTurns
					}
					id, err := o.Worlds().ApplyManifest(ctx, m)
					if err != nil {
						return err
					}
					return printCreatedWorld(ctx, o, id)
				}
				if p.Name == "" {
					return fmt.Errorf("--name required (or use --from-file)")
				}
				if p.MaxTurns == 0 {
					p.MaxTurns = cfg.Limits.MaxTurns
				}
				id, err := o.Worlds().CreateWorld(ctx, p)
				if err != nil {
					return err
				}
				return printCreatedWorld(ctx, o, id)
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "world name")
	cmd.Flags().StringVar(&p.Description, "description", "", "world description")
	cmd.Flags().IntVar(&p.MaxTurns, "max-turns", 0, "consecutive agent turns before a reply chain pauses (0 = config default)")
	cmd.Flags().StringVar(&p.MainAgent, "main-agent", "", "agent id the chain hands back to at the turn limit")
	cmd.Flags().IntVar(&p.HistoryCapacity, "history", 0, "event history capacity for this world")
	cmd.Flags().StringVarP(&manifestPath, "from-file", "f", "", "create the world and its agents from a manifest file")
	return cmd
}

func printCreatedWorld(ctx context.Context, o *agentworld.Orchestrator, id string) error {
	if viper.GetBool("json") {
		info, err := o.Worlds().GetWorldInfo(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(info)
	}
	fmt.Println(id)
	return nil
}

func worldListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List worlds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				infos, err := o.Worlds().ListWorlds(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(infos)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Agents", "Chats", "Messages", "Updated"})
				for _, info := range infos {
					tw.AppendRow(table.Row{info.ID, info.Name, info.AgentCount, info.ChatCount, info.MessageCount, formatTime(info.Updated)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func worldShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <world-id>",
		Short: "Show one world and its agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				info, err := o.Worlds().GetWorldInfo(ctx, args[0])
				if err != nil {
					return err
				}
				if info == nil {
					return fmt.Errorf("world %s not found", args[0])
				}
				agents, err := o.Worlds().GetAgents(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(struct {
						Info   *core.WorldInfo `json:"info"`
						Agents []*core.Agent   `json:"agents"`
					}{info, agents})
				}
				fmt.Printf("%s  %s\n", info.ID, info.Name)
				if info.Description != "" {
					fmt.Println(info.Description)
				}
				fmt.Printf("agents: %d  chats: %d  messages: %d  updated: %s\n",
					info.AgentCount, info.ChatCount, info.MessageCount, formatTime(info.Updated))
				if len(agents) > 0 {
					fmt.Println()
					renderAgents(agents)
				}
				return nil
			})
		},
	}
	return cmd
}

func worldDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <world-id>",
		Short: "Delete a world and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				ok, err := o.Worlds().DeleteWorld(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("world %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "Manage agents"}
	cmd.AddCommand(agentAddCmd())
	cmd.AddCommand(agentListCmd())
	cmd.AddCommand(agentUpdateCmd())
	cmd.AddCommand(agentRemoveCmd())
	return cmd
}

func agentAddCmd() *cobra.Command {
	var p core.AgentParams
	cmd := &cobra.Command{
		Use:   "add <world-id>",
		Short: "Add an agent to a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				if p.Provider == "" {
					p.Provider = cfg.Providers.Default
				}
				if p.Model == "" {
					switch p.Provider {
					case "openai":
						p.Model = cfg.Providers.OpenAI.Model
					case "anthropic":
						p.Model = cfg.Providers.Anthropic.Model
					}
				}
				a, err := o.Worlds().CreateAgent(ctx, args[0], p)
				if err != nil {
					return err
				}
				if a == nil {
					return fmt.Errorf("world %s not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Println(a.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "agent name (the id is derived from it)")
	cmd.Flags().StringVar(&p.Provider, "provider", "", "model provider (default from config)")
	cmd.Flags().StringVar(&p.Model, "model", "", "model name (default from config)")
	cmd.Flags().StringVar(&p.SystemPrompt, "system-prompt", "", "system prompt")
	cmd.Flags().Float64Var(&p.Temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&p.MaxTokens, "max-tokens", 0, "response token limit")
	cmd.Flags().BoolVar(&p.AutoReply, "auto-reply", false, "answer agent messages too, not only human ones")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func agentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List a world's agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				agents, err := o.Worlds().GetAgents(ctx, args[0])
				if err != nil {
					return err
				}
				if agents == nil {
					return fmt.Errorf("world %s not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(agents)
				}
				renderAgents(agents)
				return nil
			})
		},
	}
	return cmd
}

func agentUpdateCmd() *cobra.Command {
	var (
		name, status, provider, modelName, systemPrompt string
		temperature                                     float64
		maxTokens                                       int
		autoReply                                       bool
	)
	cmd := &cobra.Command{
		Use:   "update <world-id> <agent-id>",
		Short: "Update agent fields (only the flags you pass change)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch core.AgentPatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("status") {
				s := core.AgentStatus(status)
				switch s {
				case core.AgentActive, core.AgentInactive, core.AgentError:
				default:
					return fmt.Errorf("unknown status %q (want active, inactive or error)", status)
				}
				patch.Status = &s
			}
			if cmd.Flags().Changed("provider") {
				patch.Provider = &provider
			}
			if cmd.Flags().Changed("model") {
				patch.Model = &modelName
			}
			if cmd.Flags().Changed("system-prompt") {
				patch.SystemPrompt = &systemPrompt
			}
			if cmd.Flags().Changed("temperature") {
				patch.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				patch.MaxTokens = &maxTokens
			}
			if cmd.Flags().Changed("auto-reply") {
				patch.AutoReply = &autoReply
			}
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				a, err := o.Worlds().UpdateAgent(ctx, args[0], args[1], patch)
				if err != nil {
					return err
				}
				if a == nil {
					return fmt.Errorf("agent %s not found in world %s", args[1], args[0])
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("updated %s (status %s)\n", a.ID, a.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&status, "status", "", "active, inactive or error")
	cmd.Flags().StringVar(&provider, "provider", "", "model provider")
	cmd.Flags().StringVar(&modelName, "model", "", "model name")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "system prompt")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "response token limit")
	cmd.Flags().BoolVar(&autoReply, "auto-reply", false, "answer agent messages too")
	return cmd
}

func agentRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <world-id> <agent-id>",
		Short: "Remove an agent from a world",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				ok, err := o.Worlds().RemoveAgent(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("agent %s not found in world %s", args[1], args[0])
				}
				fmt.Println("removed", args[1])
				return nil
			})
		},
	}
	return cmd
}

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "chat", Short: "Manage chats and talk to a world"}
	cmd.AddCommand(chatOpenCmd())
	cmd.AddCommand(chatListCmd())
	cmd.AddCommand(chatCreateCmd())
	cmd.AddCommand(chatDeleteCmd())
	cmd.AddCommand(chatStopCmd())
	return cmd
}

func chatOpenCmd() *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "open <world-id>",
		Short: "Open an interactive session on a world's chat",
		Long: `Open an interactive session. Every line is broadcast to the chat; agent
responses stream back as they are generated.

Session commands:
  @<agent-id> <text>            send to one agent only
  /pending                      list pending approvals in this world
  /approve <request> <option>   resolve a pending approval
  /quit                         leave`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newStreamPrinter(viper.GetString("sender"))
			return withOrchestrator(cmd.Context(), printer.handle, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				worldID := args[0]
				res, err := o.Subscribe(ctx, core.NewID(), worldID, chatID)
				if err != nil {
					return err
				}
				defer o.Unsubscribe(res.SubscriptionID)

				fmt.Printf("connected to %s (chat %s), /quit to leave\n", worldID, orDefaultChat(chatID))
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					line := strings.TrimSpace(scanner.Text())
					switch {
					case line == "":
						continue
					case line == "/quit" || line == "/exit":
						return nil
					case line == "/pending":
						if err := renderPending(ctx, o, worldID); err != nil {
							fmt.Println("error:", err)
						}
					case strings.HasPrefix(line, "/approve "):
						fields := strings.Fields(line)
						if len(fields) != 3 {
							fmt.Println("usage: /approve <request-id> <option-id>")
							continue
						}
						req, err := o.Approvals().Respond(ctx, worldID, fields[1], fields[2], viper.GetString("sender"))
						if err != nil {
							fmt.Println("error:", err)
							continue
						}
						fmt.Printf("resolved %s with %q\n", req.ID, req.Decision)
					case strings.HasPrefix(line, "@"):
						target, content, _ := strings.Cut(line[1:], " ")
						content = strings.TrimSpace(content)
						if target == "" || content == "" {
							fmt.Println("usage: @<agent-id> <text>")
							continue
						}
						if _, err := o.Send(ctx, worldID, target, content, viper.GetString("sender"), chatID); err != nil {
							fmt.Println("error:", err)
						}
					default:
						if _, err := o.Broadcast(ctx, worldID, line, viper.GetString("sender"), chatID); err != nil {
							fmt.Println("error:", err)
						}
					}
				}
				return scanner.Err()
			})
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "chat to join (default main)")
	return cmd
}

func chatListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List a world's chats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				chats, err := o.Worlds().ListChats(ctx, args[0])
				if err != nil {
					return err
				}
				if chats == nil {
					return fmt.Errorf("world %s not found", args[0])
				}
				if viper.GetBool("json") {
					return printJSON(chats)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Messages"})
				for _, c := range chats {
					tw.AppendRow(table.Row{c.ID, c.MessageCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func chatCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <world-id> <chat-id>",
		Short: "Create a chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				created, err := o.Worlds().CreateChat(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if created {
					fmt.Println("created", args[1])
				} else {
					fmt.Println("chat already exists")
				}
				return nil
			})
		},
	}
	return cmd
}

func chatDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <world-id> <chat-id>",
		Short: "Delete a chat and its messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				ok, err := o.Worlds().DeleteChat(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("chat %s not found in world %s", args[1], args[0])
				}
				fmt.Println("deleted", args[1])
				return nil
			})
		},
	}
	return cmd
}

func chatStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <world-id> [chat-id]",
		Short: "Cancel the in-flight agent turn on a chat",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				chatID := ""
				if len(args) == 2 {
					chatID = args[1]
				}
				if o.Worlds().StopChat(args[0], chatID) {
					fmt.Println("stopped")
				} else {
					fmt.Println("nothing in flight")
				}
				return nil
			})
		},
	}
	return cmd
}

func sendCmd() *cobra.Command {
	var (
		to     string
		chatID string
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <world-id> <message...>",
		Short: "Send one message and stream the replies",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer := newStreamPrinter(viper.GetString("sender"))
			var sink subscription.Sink
			if wait > 0 {
				sink = printer.handle
			}
			return withOrchestrator(cmd.Context(), sink, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				worldID := args[0]
				content := strings.Join(args[1:], " ")

				if wait > 0 {
					res, err := o.Subscribe(ctx, core.NewID(), worldID, chatID)
					if err != nil {
						return err
					}
					defer o.Unsubscribe(res.SubscriptionID)
				}

				var (
					msg core.Message
					err error
				)
				if to != "" {
					msg, err = o.Send(ctx, worldID, to, content, viper.GetString("sender"), chatID)
				} else {
					msg, err = o.Broadcast(ctx, worldID, content, viper.GetString("sender"), chatID)
				}
				if err != nil {
					return err
				}
				if wait > 0 {
					printer.waitQuiet(ctx, wait, 2*time.Second)
				}
				if viper.GetBool("json") {
					return printJSON(msg)
				}
				if wait == 0 {
					fmt.Println(msg.MessageID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "deliver to one agent (id or name) instead of broadcasting")
	cmd.Flags().StringVar(&chatID, "chat", "", "chat to post on (default main)")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "how long to wait for replies (0 = fire and forget)")
	return cmd
}

func approvalCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "approval", Short: "Inspect and resolve approval requests"}
	cmd.AddCommand(approvalListCmd())
	cmd.AddCommand(approvalRespondCmd())
	return cmd
}

func approvalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <world-id>",
		Short: "List pending approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				return renderPending(ctx, o, args[0])
			})
		},
	}
	return cmd
}

func approvalRespondCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "respond <world-id> <request-id> <option-id>",
		Short: "Resolve a pending approval",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), nil, func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error {
				req, err := o.Approvals().Respond(ctx, args[0], args[1], args[2], viper.GetString("sender"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(req)
				}
				fmt.Printf("resolved %s with %q\n", req.ID, req.Decision)
				return nil
			})
		},
	}
	return cmd
}

func renderPending(ctx context.Context, o *agentworld.Orchestrator, worldID string) error {
	reqs, err := o.Approvals().Pending(ctx, worldID)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(reqs)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Agent", "Chat", "Prompt", "Options", "Age"})
	for _, req := range reqs {
		options := make([]string, 0, len(req.Options))
		for _, opt := range req.Options {
			options = append(options, opt.ID)
		}
		tw.AppendRow(table.Row{req.ID, req.AgentID, req.ChatID, req.Prompt,
			strings.Join(options, "/"), time.Since(req.CreatedAt).Round(time.Second)})
	}
	tw.Render()
	return nil
}

func renderAgents(agents []*core.Agent) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Name", "Status", "Provider", "Model", "Auto", "Calls", "Last Active"})
	for _, a := range agents {
		last := ""
		if !a.LastActive.IsZero() {
			last = formatTime(a.LastActive)
		}
		tw.AppendRow(table.Row{a.ID, a.Name, a.Status, a.Provider, a.Model, a.AutoReply, a.LLMCallCount, last})
	}
	tw.Render()
}

// withOrchestrator builds the orchestrator from the resolved config, runs fn,
// and closes the store afterwards. The sink may be nil for commands that do
// not observe events.
func withOrchestrator(ctx context.Context, sink subscription.Sink, fn func(ctx context.Context, o *agentworld.Orchestrator, cfg *config.Config) error) error {
	cfg, err := config.LoadWithDefaults(viper.GetString("config"))
	if err != nil {
		return err
	}
	store, err := cfg.Store()
	if err != nil {
		return err
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	o := agentworld.New(func(opts *agentworld.Options) {
		opts.Store = store
		opts.Models = cfg.Models()
		opts.HistoryCapacity = cfg.Limits.HistoryCapacity
		opts.MemoryWindow = cfg.Limits.MemoryWindow
		opts.Retention = cfg.Limits.Retention
		opts.Sink = sink
		if viper.GetBool("verbose") {
			opts.Logger = cfg.Logger()
		}
	})
	return fn(ctx, o, cfg)
}

// streamPrinter renders subscription events for a terminal: deltas stream
// inline under an agent label, messages from other humans print as chat
// lines, and world notifications print bracketed. Events for one subscription
// arrive on publisher goroutines, so all printing is serialized by mu.
type streamPrinter struct {
	self string

	mu       sync.Mutex
	current  string
	activity chan struct{}
}

func newStreamPrinter(self string) *streamPrinter {
	return &streamPrinter{self: self, activity: make(chan struct{}, 64)}
}

func (p *streamPrinter) handle(env subscription.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case p.activity <- struct{}{}:
	default:
	}

	switch payload := env.Event.Payload.(type) {
	case core.SSEPayload:
		switch {
		case payload.ErrorText != "":
			p.breakLine()
			fmt.Printf("[%s error] %s\n", payload.AgentID, payload.ErrorText)
		case payload.Final:
			if p.current == payload.AgentID {
				fmt.Println()
				p.current = ""
			}
		default:
			if p.current != payload.AgentID {
				p.breakLine()
				fmt.Printf("%s: ", payload.AgentID)
				p.current = payload.AgentID
			}
			fmt.Print(payload.Delta)
		}
	case core.MessagePayload:
		msg := payload.Message
		if msg.FromHuman() && msg.Sender != p.self {
			p.breakLine()
			fmt.Printf("%s: %s\n", msg.Sender, msg.Content)
		}
	case core.WorldPayload:
		switch payload.Action {
		case core.WorldActionTurnLimit:
			p.breakLine()
			fmt.Println("[world] turn limit reached, reply chain paused")
		case core.WorldActionAgentAdded:
			p.breakLine()
			fmt.Printf("[world] %s joined\n", payload.AgentID)
		case core.WorldActionAgentRemoved:
			p.breakLine()
			fmt.Printf("[world] %s left\n", payload.AgentID)
		}
	}
}

// breakLine ends an in-flight streamed line before printing something else.
func (p *streamPrinter) breakLine() {
	if p.current != "" {
		fmt.Println()
		p.current = ""
	}
}

// waitQuiet blocks until no event has arrived for idle, the overall timeout
// elapses, or ctx is done.
func (p *streamPrinter) waitQuiet(ctx context.Context, timeout, idle time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	quiet := time.NewTimer(idle)
	defer quiet.Stop()
	for {
		select {
		case <-p.activity:
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(idle)
		case <-quiet.C:
			return
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

func orDefaultChat(chatID string) string {
	if chatID == "" {
		return core.DefaultChatID
	}
	return chatID
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
