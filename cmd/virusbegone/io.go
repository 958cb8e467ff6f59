package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"unicode"

	"github.com/n2code/virusbegone"
	"golang.org/x/term"
)

// shortcuts assigns every option the first of its letters not yet taken by a previous option.
func shortcuts(options []string, highlight func(letter rune) string) (letterToChoice map[rune]string, display []string) {
	letterToChoice = make(map[rune]string)
	for _, option := range options {
		for i, letter := range option {
			if _, taken := letterToChoice[unicode.ToLower(letter)]; taken {
				continue
			}
			letterToChoice[unicode.ToLower(letter)] = option
			letterToChoice[unicode.ToUpper(letter)] = option
			display = append(display, option[:i]+highlight(letter)+option[i+len(string(letter)):])
			break
		}
	}
	return
}

// PromptUser asks on the terminal and accepts a single key press if the terminal supports raw mode.
// Ctrl+C aborts the choice.
func PromptUser(allowEscapeSequences bool) virusbegone.RequestChoice {
	return func(request string, options []string, cleanup bool) (choice string) {
		highlight := func(letter rune) string { return fmt.Sprintf("[%c]", letter) }
		if allowEscapeSequences {
			highlight = func(letter rune) string { return fmt.Sprintf("\x1B[1m\x1B[4m%c\x1B[0m", letter) }
		}
		letterToChoice, displayOptions := shortcuts(options, highlight)

		key := make(chan rune)
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)

		stdin := int(os.Stdin.Fd())
		rawMode := false
		if allowEscapeSequences {
			if oldState, err := term.MakeRaw(stdin); err == nil {
				rawMode = true
				defer term.Restore(stdin, oldState)
			} //otherwise ENTER is required to confirm input
		}
		rawOut := func(text string) {
			if rawMode {
				fmt.Fprint(os.Stdout, text)
			}
		}

		waitForKey := func() {
			reader := bufio.NewReaderSize(os.Stdin, 16)
			input, _ := reader.ReadByte()
			if !rawMode {
				line, _ := reader.ReadString('\n')
				if strings.TrimSpace(line) != "" {
					input = '?' //more than one letter
				}
			}
			if rawMode && input == 3 { //Ctrl+C
				interrupt <- os.Interrupt
				return
			}
			rawOut(string(unicode.ToUpper(rune(input))))
			key <- rune(input)
		}

		prompt := fmt.Sprintf("%s (%s): ", request, strings.Join(displayOptions, " / "))
		fmt.Fprint(os.Stdout, prompt)
		for {
			go waitForKey()
			select {
			case pressed := <-key:
				if selection, found := letterToChoice[pressed]; found {
					if cleanup {
						rawOut("\033[2K\r")
					} else {
						rawOut("\r\n")
					}
					return selection
				}
				rawOut("\a\033[1D")
				if !rawMode {
					fmt.Fprint(os.Stdout, prompt)
				}
			case <-interrupt:
				fmt.Fprint(os.Stdout, "<CANCELLED>\r\n")
				return ""
			}
		}
	}
}

// AutoChooseDefaultOption answers every request with its first option, used when nobody can be asked.
func AutoChooseDefaultOption(quiet bool) virusbegone.RequestChoice {
	return func(request string, options []string, cleanup bool) string {
		defaultChoice := options[0]
		if !quiet {
			fmt.Fprintf(os.Stdout, "%s => [%s]\n", request, strings.ToUpper(defaultChoice))
		}
		return defaultChoice
	}
}
