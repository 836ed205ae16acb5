package extraction

import "regexp"

// Shared fragments of the pattern tables.
const (
	num   = `([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]+)?|[0-9]+(?:\.[0-9]+)?)`
	money = `([0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2}|[0-9]+\.[0-9]{2})`
	cur   = `(?:ETB|birr)`
	ref   = `([A-Z0-9]{6,})`
	name  = `(\p{L}[\p{L}.' ]*\p{L})`
	month = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`
)

// GenericID identifies the fallback template.
const GenericID = "generic"

var genericDateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"1/2/2006",
	"1-2-2006",
	"2-Jan-2006",
	"2-January-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2 2006",
	"January 2 2006",
}

// Generic returns the fallback template used for every bank.
func Generic() Template {
	return Template{
		ID:   GenericID,
		Name: "Generic",
		Chains: map[Field][]Pattern{
			FieldAmount: {
				text(`transferred amount\s*[:\-]?\s*` + cur + `?\s*` + num),
				text(`total amount debited[^0-9]{0,40}` + num),
				text(`\bamount\s*(?:paid)?\s*[:\-]?\s*` + cur + `?\s*` + num),
				text(`\btotal\s*[:\-]?\s*` + cur + `?\s*` + num),
				text(`\b` + cur + `\s*` + num),
				text(num + `\s*\(?` + cur + `\b`),
				text(`(?:^|\s)` + money + `(?:\s|$)`),
			},
			FieldCurrency: {
				text(`\b(ETB|birr|USD|EUR)\b`),
			},
			FieldReference: {
				text(`reference no\.?\s*\(vat invoice no\)\s*[:#]?\s*` + ref),
				text(`vat invoice no\.?\s*[:#]?\s*` + ref),
				text(`transaction id\s*[:#]?\s*` + ref),
				text(`transaction (?:ref(?:erence)?|number|no\.?)\s*[:#]?\s*` + ref),
				text(`\b(?:reference|ref)\b(?:\s*no\.?)?\s*[:#]?\s*` + ref),
				text(`\b(FT[0-9]{2}[A-Z0-9]{6,})\b`),
			},
			FieldDate: {
				text(`\b([0-9]{4}[/-][0-9]{1,2}[/-][0-9]{1,2})\b`),
				text(`\b([0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{4})\b`),
				text(`\b([0-9]{1,2}[- ]` + month + `[- ,]+[0-9]{4})\b`),
				text(`\b(` + month + `\s+[0-9]{1,2},?\s+[0-9]{4})\b`),
			},
			FieldTime: {
				text(`\b([0-9]{1,2}:[0-9]{2}(?::[0-9]{2})?(?:\s*[AP]M)?)\b`),
			},
			FieldPayer: {
				line(`\bpayer(?:\s*name)?\s*[:\-]\s*` + name),
				line(`\bsender(?:\s*name)?\s*[:\-]?\s*` + name),
				line(`\btransfer(?:red)? from\s+` + name),
				line(`\bfrom\s*[:\-]\s*` + name),
			},
			FieldReceiver: {
				line(`\breceiver(?:\s*name)?\s*[:\-]\s*` + name),
				line(`\brecipient(?:\s*name)?\s*[:\-]?\s*` + name),
				line(`\btransfer(?:red)? to\s+` + name),
				line(`\bto\s*[:\-]\s*` + name),
			},
		},
		DateLayouts: genericDateLayouts,
		Segment: SegmentRule{
			EntryStart: regexp.MustCompile(`(?i)^(?:[0-9]{1,2}[/-][0-9]{1,2}[/-][0-9]{4}|[0-9]{4}[/-][0-9]{1,2}[/-][0-9]{1,2}|[0-9]{1,2}[- ]` + month + `[- ][0-9]{4})\b`),
			Header:     regexp.MustCompile(`(?i)^(?:date\b.*\b(?:amount|description|reference|particulars)\b|(?:opening|closing|available) balance\b|balance (?:b/f|c/f)\b|page [0-9]+|statement (?:of account|period)\b|account (?:no|number|name|holder)\b|total (?:debits?|credits?)\b)`),
		},
	}
}

// CBE covers Commercial Bank of Ethiopia receipts and debit notifications.
func CBE() Template {
	return Template{
		ID:       "cbe",
		Name:     "Commercial Bank of Ethiopia",
		Aliases:  []string{"commercial bank", "commercial bank of ethiopia"},
		Keywords: []string{"commercial bank of ethiopia", "cbe"},
		Chains: map[Field][]Pattern{
			FieldAmount: {
				text(`\bETB\s*` + num + `\s+debited\b`),
				text(`transferred amount\s*[:\-]?\s*` + num + `\s*ETB`),
			},
			FieldReference: {
				text(`reference no\.?\s*\(vat invoice no\)\s*[:#]?\s*` + ref),
				text(`with transaction id\s*[:#]?\s*` + ref),
			},
			FieldDate: {
				dated(text(`payment date\s*(?:&|and)?\s*time\s*[:\-]?\s*([0-9]{1,2}/[0-9]{1,2}/[0-9]{4})`), "1/2/2006"),
				text(`\bon\s+([0-9]{1,2}-` + month + `-[0-9]{4})`),
			},
			FieldPayer: {
				text(`debited from\s+(\p{L}[\p{L}.' ]*?)\s+for\b`),
				line(`^payer\s*[:\-]?\s*` + name),
			},
			FieldReceiver: {
				text(`\bfor\s+(\p{L}[\p{L}.' ]*?)\s+on\s+[0-9]`),
				line(`^receiver\s*[:\-]?\s*` + name),
			},
		},
	}
}

// Dashen covers Dashen Bank mobile receipts.
func Dashen() Template {
	return Template{
		ID:       "dashen",
		Name:     "Dashen Bank",
		Aliases:  []string{"dashen bank", "amole"},
		Keywords: []string{"dashen"},
		Chains: map[Field][]Pattern{
			FieldAmount: {
				text(`transaction amount\s*[:\-]?\s*(?:ETB\s*)?` + num),
				text(`\btotal\s*[:\-]?\s*` + num + `\s*ETB`),
			},
			FieldReference: {
				text(`transaction ref(?:erence)?\s*[:#]?\s*` + ref),
			},
			FieldDate: {
				text(`\b(` + month + `\s+[0-9]{1,2},?\s+[0-9]{4})\b`),
			},
			FieldPayer: {
				line(`\bsender name\s*[:\-]?\s*` + name),
			},
			FieldReceiver: {
				line(`\brecipient name\s*[:\-]?\s*` + name),
			},
		},
		DateLayouts: []string{"Jan 2 2006", "January 2 2006"},
	}
}

// Telebirr covers telebirr wallet transfer receipts.
func Telebirr() Template {
	return Template{
		ID:       "telebirr",
		Name:     "telebirr",
		Aliases:  []string{"tele birr", "ethio telecom"},
		Keywords: []string{"telebirr", "tele birr", "ethio telecom"},
		Chains: map[Field][]Pattern{
			FieldAmount: {
				text(`-\s*` + num + `\s*\(ETB\)`),
				text(`total paid amount\s*[:\-]?\s*` + num),
			},
			FieldReference: {
				text(`transaction number\s*[:#]?\s*` + ref),
			},
			FieldDate: {
				text(`\b([0-9]{4}/[0-9]{1,2}/[0-9]{1,2})\b`),
			},
			FieldPayer: {
				line(`\bpayer name\s*[:\-]?\s*` + name),
			},
			FieldReceiver: {
				line(`\btransaction to\s*[:\-]?\s*` + name),
				line(`\bcredited party name\s*[:\-]?\s*` + name),
			},
		},
		DateLayouts: []string{"2006/1/2"},
	}
}

// Awash and Abyssinia have no layout of their own yet; registering them lets
// detection attribute the bank while the generic chain does the extraction.
func Awash() Template {
	return Template{ID: "awash", Name: "Awash Bank", Aliases: []string{"awash bank"}, Keywords: []string{"awash bank"}}
}

func Abyssinia() Template {
	return Template{ID: "boa", Name: "Bank of Abyssinia", Aliases: []string{"abyssinia", "bank of abyssinia"}, Keywords: []string{"bank of abyssinia", "boa mobile"}}
}
