package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the next case and commit it to the session",
		Long: `Plan the arc, rebuild thread state, derive the cache key, build the prompt
and call the configured provider. The session and arc store change only when
generation succeeds.`,
		Run: runGenerate,
	}

	addSessionFlag(cmd)

	RootCmd.AddCommand(cmd)
}

func runGenerate(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	sess := loadSession(cmd)
	eng := newEngine(cmd, s, true)

	out, err := eng.GenerateNext(cmd.Context(), sess)
	if err != nil {
		exitErr("generate", err)
	}
	if err := sessionStore().Save(sess); err != nil {
		exitErr("save session", err)
	}

	if formatFlag == "text" {
		ch := out.Chapter
		fmt.Printf("%s  %s\n\n", ch.CaseNumber(), ch.Title)
		if ch.BridgeText != "" {
			fmt.Printf("%s\n\n", ch.BridgeText)
		}
		fmt.Println(ch.Narrative)
		return
	}
	printJSON(out)
}
