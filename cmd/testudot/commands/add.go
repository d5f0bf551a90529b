package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	addEmail   string
	addCourses []string
)

func init() {
	addCmd.Flags().StringVarP(&addEmail, "email", "e", "", "email address to notify")
	addCmd.Flags().StringSliceVar(&addCourses, "courses", nil, "comma separated course ids, e.g. CMSC351,MATH240")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Subscribe an email to one or more courses, prompting for anything not given.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stdin := bufio.NewReader(os.Stdin)

		email := addEmail
		if email == "" {
			var err error
			email, err = prompt(stdin, "email: ")
			if err != nil {
				return err
			}
		}
		courses := splitCourses(strings.Join(addCourses, ","))
		if len(courses) == 0 {
			line, err := prompt(stdin, "courses (comma separated): ")
			if err != nil {
				return err
			}
			courses = splitCourses(line)
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		err = app.Directory.Add(cmd.Context(), email, courses)
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("%s is now watching %s", strings.TrimSpace(email), strings.Join(courses, ", "))))
		return nil
	},
}

func prompt(in *bufio.Reader, label string) (string, error) {
	fmt.Print(boldStyle.Render(label))
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// splitCourses upper cases course codes the way testudo lists them.
func splitCourses(line string) []string {
	var out []string
	for _, course := range strings.Split(line, ",") {
		course = strings.ToUpper(strings.TrimSpace(course))
		if course != "" {
			out = append(out, course)
		}
	}
	return out
}
