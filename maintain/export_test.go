package maintain

// SetOpenCommandForTest swaps the URL opener binary and
// returns a restore function.
func SetOpenCommandForTest(cmd string) func() {
	prev := openCommand
	openCommand = cmd

	return func() { openCommand = prev }
}
