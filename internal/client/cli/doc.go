// Package cli implements the interactive Keynest shell.
//
// The shell reads one command per line, dispatches it to the session guard
// and prints the result. Every line typed counts as user activity and
// restarts the idle auto-lock timer. Master passwords are read from the
// terminal without echo; stored passwords are never printed unless asked
// for with "show <id> -p".
//
// Entry ids may be abbreviated to any unique prefix, as shown by "list".
package cli
