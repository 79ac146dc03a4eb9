package models

import "encoding/json"

// Command represents an instruction returned by the remote service in response to a status report.
//
// The canonical shape nests the print arguments under "data":
//
//	{"command": "print", "data": {"file_url": "...", "file_name": "..."}}
//
// The legacy flat shape {"command": "print", "file_url": "...", "file_name": "..."} is accepted too.
type Command struct {
	Kind string     `json:"command"`        // print, cancel, pause or resume
	Data *PrintData `json:"data,omitempty"` // Set only for print commands
}

// PrintData carries the job file a print command refers to.
type PrintData struct {
	FileURL  string `json:"file_url"`  // Location of the job file, any scheme the HTTP client follows
	FileName string `json:"file_name"` // Requested name, sanitized before touching the filesystem
}

// UnmarshalJSON decodes both the nested and the flat command shapes.
func (c *Command) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind     string     `json:"command"`
		Data     *PrintData `json:"data"`
		FileURL  string     `json:"file_url"`
		FileName string     `json:"file_name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	c.Kind = raw.Kind
	c.Data = raw.Data
	if c.Data == nil && (raw.FileURL != "" || raw.FileName != "") {
		c.Data = &PrintData{FileURL: raw.FileURL, FileName: raw.FileName}
	}
	return nil
}
