package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abhisek/fractiz/internal/session"
	"github.com/abhisek/fractiz/internal/ui/components"
	"github.com/abhisek/fractiz/internal/ui/theme"
)

var beginCmd = &cobra.Command{
	Use:   "begin STUDENT",
	Short: "Begin a session, creating the student on first contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		sess, err := app.service.Begin(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), sess)
		}
		state := "returning student"
		if sess.Created {
			state = "new student"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s started for %s (%s)\n", sess.ID, sess.StudentID, state)
		return nil
	},
}

var nextCmd = &cobra.Command{
	Use:   "next STUDENT",
	Short: "Show the next question to practice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		item, err := app.service.Next(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), item)
		}

		out := cmd.OutOrStdout()
		if item.Complete {
			fmt.Fprintln(out, theme.Correct.Render("Every knowledge component is mastered. Nothing left to practice."))
			return nil
		}
		q := item.Question
		fmt.Fprintln(out, theme.Title.Render(q.ID)+theme.Hint.Render(fmt.Sprintf("  %s · difficulty %d", q.KC, q.Difficulty)))
		if item.Relaxed {
			fmt.Fprintln(out, theme.Hint.Render(fmt.Sprintf("(no question at difficulty %d; serving difficulty %d)", item.Target.Difficulty, q.Difficulty)))
		}
		fmt.Fprintln(out, theme.Body.Render(q.Content.Text))
		for i, opt := range q.Options {
			fmt.Fprintf(out, "  %c) %s\n", 'A'+i, opt)
		}
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer STUDENT QUESTION_ID true|false",
	Short: "Record whether the student answered a question correctly",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		correct, err := strconv.ParseBool(args[2])
		if err != nil {
			return fmt.Errorf("correctness must be true or false, got %q", args[2])
		}

		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		res, err := app.service.Submit(cmd.Context(), args[0], args[1], correct)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintln(cmd.OutOrStdout(), components.AnswerFeedback(res.Correct, res.CorrectAnswer, res.Before, res.After))
		fmt.Fprintf(cmd.OutOrStdout(), "%d stars · %s\n", res.TotalStars, res.Title)
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress STUDENT",
	Short: "Show mastery, stars, and title for a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		p, err := app.service.Progress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		width, _ := cmd.Flags().GetInt("width")
		fmt.Fprintln(cmd.OutOrStdout(), components.ProgressReport{Progress: p, Width: width}.View())
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export STUDENT",
	Short: "Write a student's interaction log as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var w io.Writer = cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}
		return app.service.Export(cmd.Context(), args[0], w)
	},
}

func init() {
	for _, c := range []*cobra.Command{beginCmd, nextCmd, answerCmd, progressCmd} {
		c.Flags().Bool("json", false, "Print JSON instead of formatted text")
	}
	progressCmd.Flags().Int("width", 60, "Report width in columns")
	exportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout (e.g. "+session.ExportFilename("STUDENT")+")")
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
