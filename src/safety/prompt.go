// Package safety gates destructive operations behind an interactive yes/no
// prompt that unattended runs can pre-answer with --yes.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm asks the user before a destructive action. With opts.Yes set it
// returns true without prompting; with opts.DryRun set it returns false
// without prompting, since dry runs never act. Only "y"/"yes" count as
// consent; EOF counts as a decline.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes", nil
}
