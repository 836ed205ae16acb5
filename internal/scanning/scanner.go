package scanning

import "errors"

// ErrNoText is returned when the recognizer finds no text in the image.
var ErrNoText = errors.New("no text recognized")

// Scanner turns a receipt image into raw text. The text is returned as
// printed; field extraction happens elsewhere.
type Scanner interface {
	// ScanText transcribes every line of text in an image or PDF
	ScanText(imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}

// transcribePrompt is shared by every model-backed scanner.
const transcribePrompt = `Transcribe all text in this image of a bank transfer receipt, payment confirmation or bank statement.

Rules:
- Copy the text exactly as printed, line by line, keeping the original line breaks.
- Keep every number, reference code, date and name exactly as shown. Do not correct, convert or reformat anything.
- Keep text in any script (Latin, Ethiopic) as printed.
- Separate table rows with new lines and separate unrelated blocks with a blank line.
- Do not summarize, explain or add any text of your own.
- Do not use markdown code blocks.
- If the image contains no readable text, answer with exactly: NO_TEXT`
