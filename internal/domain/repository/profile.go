package repository

// Profile contiene los atributos visibles de un usuario (h-card).
// Clave: URL canónica (me). Last-write-wins.
type Profile struct {
	Me    string `json:"me"`
	Name  string `json:"name,omitempty"`
	Photo string `json:"photo,omitempty"`
	URL   string `json:"url,omitempty"`
	Email string `json:"email,omitempty"`
}

func (p *Profile) ToRecord() map[string]any {
	m := map[string]any{"me": p.Me}
	putOpt(m, "name", p.Name)
	putOpt(m, "photo", p.Photo)
	putOpt(m, "url", p.URL)
	putOpt(m, "email", p.Email)
	return m
}

func ProfileFromRecord(m map[string]any) (*Profile, error) {
	return &Profile{
		Me:    str(m, "me"),
		Name:  str(m, "name"),
		Photo: str(m, "photo"),
		URL:   str(m, "url"),
		Email: str(m, "email"),
	}, nil
}
