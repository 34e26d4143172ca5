package oparl

// papersResponse is one page of the OParl papers listing.
type papersResponse struct {
	Data  []paperObject `json:"data"`
	Links pageLinks     `json:"links"`
}

type pageLinks struct {
	Next string `json:"next"`
}

type paperObject struct {
	ID        string    `json:"id"` // OParl object URL, carries the numeric id
	Name      string    `json:"name"`
	Reference string    `json:"reference"`
	PaperType string    `json:"paperType"`
	Created   string    `json:"created"`
	Web       string    `json:"web"`
	MainFile  *mainFile `json:"mainFile"`
}

type mainFile struct {
	AccessURL string `json:"accessUrl"`
}
