package format

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiDim   = "\033[2m"

	green         = "\033[32m"
	magenta       = "\033[35m"
	cyan          = "\033[36m"
	gray          = "\033[37m"
	brightYellow  = "\033[93m"
	brightBlue    = "\033[94m"
	brightMagenta = "\033[95m"
	brightCyan    = "\033[96m"
)

// paint wraps text in an ANSI sequence when colors are on
func (o Options) paint(text, color string) string {
	if !o.UseColors || color == "" {
		return text
	}
	return color + text + ansiReset
}
