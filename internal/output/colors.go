package output

// Escape is a terminal control sequence. Printer.Sprintf drops it in plain mode.
type Escape string

const (
	Reset          Escape = "\x1B[0m"
	BoldIntensity  Escape = "\x1B[1m"
	FaintIntensity Escape = "\x1B[2m"
	Invert         Escape = "\x1B[7m"
	Red            Escape = "\x1B[31m"
	Green          Escape = "\x1B[32m"
	Yellow         Escape = "\x1B[33m"
	Magenta        Escape = "\x1B[35m"
	Cyan           Escape = "\x1B[36m"
)
