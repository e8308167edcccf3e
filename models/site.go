package models

// ActivityTypes maps the first two digits of a BRRTS number to the
// activity type it encodes.
var ActivityTypes = map[string]string{
	"02": "ERP",
	"03": "LUST",
	"04": "Spills",
	"05": "NAR",
}

// ActivityTypeFromBRRTS derives the activity type from a BRRTS number
// such as "02-13-551520". Unknown prefixes yield an empty string.
func ActivityTypeFromBRRTS(brrts string) string {
	if len(brrts) < 2 {
		return ""
	}
	return ActivityTypes[brrts[:2]]
}

// Site is one contaminated-site record collected by the list scraper.
type Site struct {
	BRRTSNumber  string `json:"brrts_number"`
	DetailSeqNo  string `json:"detail_seq_no"` // the dsn used by the relay
	ActivityName string `json:"activity_name,omitempty"`
	ActivityType string `json:"activity_type,omitempty"`
	Status       string `json:"status,omitempty"`
	County       string `json:"county,omitempty"`
	Address      string `json:"address,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	SourceURL    string `json:"source_url,omitempty"`
}

// Document is one document link harvested from a site's detail fragments.
type Document struct {
	DocSeqNo     int    `json:"doc_seq_no"`
	Title        string `json:"title,omitempty"`
	DocumentDate string `json:"document_date,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	DocumentURL  string `json:"document_url"`
}
