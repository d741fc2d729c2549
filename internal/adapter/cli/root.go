package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmorrow/prompt-arena/internal/domain"
	"github.com/jmorrow/prompt-arena/internal/store"
)

// ErrVersionRequested indicates the user requested the CLI version and no further work should be done.
var ErrVersionRequested = errors.New("version requested")

// PromptService defines the dependency required by the prompt commands.
type PromptService interface {
	Create(ctx context.Context, ref domain.PromptRef, content string) (domain.PromptRecord, error)
	Get(ctx context.Context, ref domain.PromptRef) (domain.PromptRecord, error)
	Delete(ctx context.Context, ref domain.PromptRef) (bool, error)
	List(ctx context.Context, filter store.PromptFilter) ([]domain.PromptRecord, error)
	Leaderboard(ctx context.Context, kind string, limit int) ([]domain.PromptRecord, error)
}

// BattleEngine defines the dependency required by the battle commands.
type BattleEngine interface {
	CreateBattle(ctx context.Context, attackerRef domain.PromptRef, defenderRef *domain.PromptRef) (domain.Battle, error)
	ExecuteBattle(ctx context.Context, battleID string) (domain.Battle, error)
	GetStatus(ctx context.Context, battleID string) (domain.Battle, error)
	ListBattles(ctx context.Context, limit int) ([]domain.Battle, error)
}

// OpponentFinder defines the dependency required by the opponents command.
type OpponentFinder interface {
	FindOpponents(ctx context.Context, ref domain.PromptRef, count int) ([]domain.PromptRef, error)
}

// ReportWriter defines the dependency required by the battle report command.
type ReportWriter interface {
	Write(ctx context.Context, outputDir string, battle domain.Battle) (string, error)
}

// Arguments encapsulates IO streams injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
	InReader  io.Reader
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Prompts       PromptService
	Battles       BattleEngine
	Opponents     OpponentFinder
	Reports       ReportWriter
	Args          Arguments
	DefaultOutput string
	Version       string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "arena",
		Short: "Prompt battle adjudication CLI",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	inReader := deps.Args.InReader
	if inReader == nil {
		inReader = os.Stdin
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)
	root.SetIn(bufio.NewReader(inReader))

	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage attack and defense prompts",
	}
	promptCmd.AddCommand(promptCreateCommand(deps.Prompts))
	promptCmd.AddCommand(promptShowCommand(deps.Prompts))
	promptCmd.AddCommand(promptListCommand(deps.Prompts))
	promptCmd.AddCommand(promptDeleteCommand(deps.Prompts))
	root.AddCommand(promptCmd)

	battleCmd := &cobra.Command{
		Use:   "battle",
		Short: "Create and execute battles",
	}
	battleCmd.AddCommand(battleCreateCommand(deps.Battles))
	battleCmd.AddCommand(battleExecuteCommand(deps.Battles, deps.Reports, deps.DefaultOutput))
	battleCmd.AddCommand(battleStatusCommand(deps.Battles))
	battleCmd.AddCommand(battleListCommand(deps.Battles))
	battleCmd.AddCommand(battleReportCommand(deps.Battles, deps.Reports, deps.DefaultOutput))
	root.AddCommand(battleCmd)

	root.AddCommand(opponentsCommand(deps.Opponents))
	root.AddCommand(topCommand(deps.Prompts))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.PreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func promptCreateCommand(prompts PromptService) *cobra.Command {
	var contentFile string

	cmd := &cobra.Command{
		Use:   "create <ref> [content]",
		Short: "Register a prompt under @owner/kind/name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParsePromptRef(args[0])
			if err != nil {
				return err
			}

			var content string
			switch {
			case len(args) == 2:
				content = args[1]
			case contentFile != "":
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("read content file: %w", err)
				}
				content = string(data)
			default:
				return fmt.Errorf("prompt content not specified; pass as an argument or use --file")
			}

			record, err := prompts.Create(cmd.Context(), ref, content)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s (rating %d)\n", record.Ref.String(), record.Rating)
			return nil
		},
	}

	cmd.Flags().StringVar(&contentFile, "file", "", "Read prompt content from a file")
	return cmd
}

func promptShowCommand(prompts PromptService) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a prompt record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParsePromptRef(args[0])
			if err != nil {
				return err
			}

			record, err := prompts.Get(cmd.Context(), ref)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Ref:      %s\n", record.Ref.String())
			_, _ = fmt.Fprintf(out, "Rating:   %d\n", record.Rating)
			_, _ = fmt.Fprintf(out, "Record:   %dW / %dL (%.1f%% win rate)\n", record.Wins, record.Losses, record.WinRate())
			_, _ = fmt.Fprintf(out, "Created:  %s\n", record.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			_, _ = fmt.Fprintf(out, "Content:\n%s\n", record.Content)
			return nil
		},
	}
}

func promptListCommand(prompts PromptService) *cobra.Command {
	var owner string
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := prompts.List(cmd.Context(), store.PromptFilter{OwnerID: owner, Kind: kind})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				_, _ = fmt.Fprintln(out, "No prompts registered.")
				return nil
			}
			for _, record := range records {
				_, _ = fmt.Fprintf(out, "%-40s rating=%d record=%dW/%dL\n",
					record.Ref.String(), record.Rating, record.Wins, record.Losses)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Only list prompts for this owner")
	cmd.Flags().StringVar(&kind, "kind", "", "Only list prompts of this kind (attack or defense)")
	return cmd
}

func promptDeleteCommand(prompts PromptService) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <ref>",
		Short: "Delete a prompt record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParsePromptRef(args[0])
			if err != nil {
				return err
			}

			if !force {
				confirmed, err := confirmDeletion(cmd, ref)
				if err != nil {
					return err
				}
				if !confirmed {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			deleted, err := prompts.Delete(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("prompt not found: %s", ref.String())
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", ref.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Delete without confirmation")
	return cmd
}

// confirmDeletion asks for interactive confirmation. Non-interactive
// sessions must pass --force so scripted runs never block on a prompt.
func confirmDeletion(cmd *cobra.Command, ref domain.PromptRef) (bool, error) {
	if !IsInteractive() {
		return false, fmt.Errorf("refusing to delete %s without confirmation; re-run with --force", ref.String())
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delete %s? [y/N]: ", ref.String())
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func battleCreateCommand(battles BattleEngine) *cobra.Command {
	var opponent string

	cmd := &cobra.Command{
		Use:   "create <ref> [opponent]",
		Short: "Set up a battle; the opponent is auto-matched when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParsePromptRef(args[0])
			if err != nil {
				return err
			}
			if len(args) > 1 {
				opponent = args[1]
			}

			var opponentRef *domain.PromptRef
			if opponent != "" {
				parsed, err := domain.ParsePromptRef(opponent)
				if err != nil {
					return err
				}
				opponentRef = &parsed
			}

			battle, err := battles.CreateBattle(cmd.Context(), ref, opponentRef)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Battle %s created\n", battle.ID)
			_, _ = fmt.Fprintf(out, "  Attacker: %s\n", battle.AttackerRef.String())
			_, _ = fmt.Fprintf(out, "  Defender: %s\n", battle.DefenderRef.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&opponent, "opponent", "", "Opponent ref (overrides positional)")
	return cmd
}

func battleExecuteCommand(battles BattleEngine, reports ReportWriter, defaultOutput string) *cobra.Command {
	var writeReport bool
	var outputDir string

	cmd := &cobra.Command{
		Use:   "execute <battle-id>",
		Short: "Run a battle against the model and record the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			battle, err := battles.ExecuteBattle(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printOutcome(cmd.OutOrStdout(), battle)

			if writeReport && reports != nil {
				path, err := reports.Write(cmd.Context(), outputDir, battle)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
			}
			return nil
		},
	}

	if defaultOutput == "" {
		defaultOutput = "reports"
	}
	cmd.Flags().BoolVar(&writeReport, "report", false, "Write a markdown report after execution")
	cmd.Flags().StringVar(&outputDir, "output", defaultOutput, "Directory to write battle reports")
	return cmd
}

func battleStatusCommand(battles BattleEngine) *cobra.Command {
	return &cobra.Command{
		Use:   "status <battle-id>",
		Short: "Show the status of a battle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			battle, err := battles.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Battle:   %s\n", battle.ID)
			_, _ = fmt.Fprintf(out, "Status:   %s\n", battle.Status)
			_, _ = fmt.Fprintf(out, "Attacker: %s\n", battle.AttackerRef.String())
			_, _ = fmt.Fprintf(out, "Defender: %s\n", battle.DefenderRef.String())
			if battle.Completed() {
				printOutcome(out, battle)
			}
			return nil
		},
	}
}

func battleListCommand(battles BattleEngine) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent battles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := battles.ListBattles(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(out, "No battles recorded.")
				return nil
			}
			for _, battle := range list {
				outcome := "pending"
				if battle.Completed() {
					outcome = "winner " + battle.Result.WinnerRef.String()
				}
				_, _ = fmt.Fprintf(out, "%-36s %-9s %s vs %s (%s)\n",
					battle.ID, battle.Status,
					battle.AttackerRef.String(), battle.DefenderRef.String(), outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of battles to list")
	return cmd
}

func battleReportCommand(battles BattleEngine, reports ReportWriter, defaultOutput string) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "report <battle-id>",
		Short: "Write a markdown report for a battle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if reports == nil {
				return fmt.Errorf("report writer not configured")
			}
			battle, err := battles.GetStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			path, err := reports.Write(cmd.Context(), outputDir, battle)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
			return nil
		},
	}

	if defaultOutput == "" {
		defaultOutput = "reports"
	}
	cmd.Flags().StringVar(&outputDir, "output", defaultOutput, "Directory to write battle reports")
	return cmd
}

func opponentsCommand(finder OpponentFinder) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "opponents <ref>",
		Short: "List the closest-rated opponents for a prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParsePromptRef(args[0])
			if err != nil {
				return err
			}

			refs, err := finder.FindOpponents(cmd.Context(), ref, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, opponent := range refs {
				_, _ = fmt.Fprintf(out, "%d. %s\n", i+1, opponent.String())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "Maximum number of opponents to list")
	return cmd
}

func topCommand(prompts PromptService) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the highest-rated prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := prompts.Leaderboard(cmd.Context(), kind, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				_, _ = fmt.Fprintln(out, "No prompts registered.")
				return nil
			}
			for i, record := range records {
				_, _ = fmt.Fprintf(out, "%2d. %-40s rating=%d record=%dW/%dL\n",
					i+1, record.Ref.String(), record.Rating, record.Wins, record.Losses)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", domain.KindAttack, "Leaderboard kind (attack or defense)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of entries")
	return cmd
}

func printOutcome(out io.Writer, battle domain.Battle) {
	if battle.Result == nil {
		return
	}
	if battle.Result.AttackWon {
		_, _ = fmt.Fprintln(out, "Outcome: secret extracted, attacker wins")
	} else {
		_, _ = fmt.Fprintln(out, "Outcome: defense held, defender wins")
	}
	_, _ = fmt.Fprintf(out, "Winner:  %s\n", battle.Result.WinnerRef.String())
	_, _ = fmt.Fprintf(out, "Rating:  attacker %+.1f, defender %+.1f\n",
		battle.Result.AttackerDelta, battle.Result.DefenderDelta)
}
