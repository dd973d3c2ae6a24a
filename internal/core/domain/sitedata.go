package domain

// SiteData is the document consumed by the site renderer. Field names are a
// compatibility contract with the renderer.
type SiteData struct {
	SiteName    string          `json:"siteName"`
	Plans       []PlanItem      `json:"plans"`
	Lots        []LotItem       `json:"lots"`
	ProjectDocs []ProjectDoc    `json:"projectDocs"`
	Photos      []Photo         `json:"photos"`
	Flags       map[string]bool `json:"flags,omitempty"`
	Drive       *DriveInfo      `json:"drive,omitempty"`
}

type PlanItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   float64  `json:"bathrooms"`
	Sqft        int      `json:"sqft"`
	Stories     int      `json:"stories"`
	GarageSF    int      `json:"garageSf,omitempty"`
	Features    []string `json:"features"`
	File        string   `json:"file"`
	FileName    string   `json:"fileName"`
	Photos      []string `json:"photos"`
}

type LotItem struct {
	ID           string            `json:"id"`
	Number       string            `json:"number"`
	Title        string            `json:"title"`
	Size         string            `json:"size"`
	Description  string            `json:"description"`
	Completeness int               `json:"completeness"`
	DocRefs      map[string]string `json:"docRefs"`
	Features     []string          `json:"features"`
	File         string            `json:"file"`
	Name         string            `json:"name"`
	Page         *int              `json:"page"`
	Photos       []string          `json:"photos"`
	Status       string            `json:"status,omitempty"`
	APN          string            `json:"apn,omitempty"`
	Address      string            `json:"address,omitempty"`
	Missing      []string          `json:"missing,omitempty"`
}

type ProjectDoc struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	File        string `json:"file"`
	Icon        string `json:"icon"`
	Name        string `json:"name"`
}

type Photo struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type DriveInfo struct {
	FolderID string `json:"folderId"`
}
