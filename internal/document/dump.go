package document

// Dump is the lossless structured form written to <name>.json.
type Dump struct {
	Name         string      `json:"name"`
	Title        string      `json:"title"`
	PageCount    *int        `json:"page_count,omitempty"`
	Sections     []*Section  `json:"sections"`
	Tables       []TableGrid `json:"tables"`
	PictureCount int         `json:"picture_count"`
	KeyValues    []KeyValue  `json:"key_values,omitempty"`
	FormItems    []FormItem  `json:"form_items,omitempty"`
}

// Dump builds the structured form of the document from grids already
// converted with Grids.
func (d *Document) Dump(grids []TableGrid) Dump {
	out := Dump{
		Name:         d.Name,
		Title:        d.Title,
		PageCount:    d.Pages,
		Sections:     d.Sections,
		Tables:       grids,
		PictureCount: len(d.Pictures),
		KeyValues:    d.KeyValues,
		FormItems:    d.FormItems,
	}
	if out.Sections == nil {
		out.Sections = []*Section{}
	}
	if out.Tables == nil {
		out.Tables = []TableGrid{}
	}
	return out
}
