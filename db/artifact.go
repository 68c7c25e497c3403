package db

// ArtifactType identifies what kind of derived file an artifact is.
type ArtifactType string

const (
	ArtifactTypeHTML ArtifactType = "html"
	ArtifactTypePNG  ArtifactType = "png"
	ArtifactTypeSVG  ArtifactType = "svg"
	ArtifactTypeXLSX ArtifactType = "xlsx"
	ArtifactTypeDOT  ArtifactType = "dot"
	ArtifactTypeXML  ArtifactType = "xml"
)

// ValidArtifactType reports whether t names a known artifact type.
func ValidArtifactType(t string) bool {
	switch ArtifactType(t) {
	case ArtifactTypeHTML, ArtifactTypePNG, ArtifactTypeSVG, ArtifactTypeXLSX, ArtifactTypeDOT, ArtifactTypeXML:
		return true
	}
	return false
}

// Artifact is a derived file (report, spreadsheet, graph) owned by a scan.
type Artifact struct {
	BaseModel
	ScanID   uint         `gorm:"index" json:"scan_id"`
	Type     ArtifactType `json:"type"`
	FilePath string       `json:"file_path"`
	FileSize int64        `json:"file_size"`
}

// TableName overrides the default table name.
func (Artifact) TableName() string {
	return "artifacts"
}

// CreateArtifact saves a new artifact record.
func (d *DatabaseConnection) CreateArtifact(artifact *Artifact) (*Artifact, error) {
	result := d.db.Create(artifact)
	return artifact, result.Error
}

// GetArtifactsForScan returns all artifacts belonging to a scan.
func (d *DatabaseConnection) GetArtifactsForScan(scanID uint) ([]Artifact, error) {
	var artifacts []Artifact
	err := d.db.Where("scan_id = ?", scanID).Find(&artifacts).Error
	return artifacts, err
}

// GetArtifactByScanAndType fetches one artifact of the given type for a scan.
func (d *DatabaseConnection) GetArtifactByScanAndType(scanID uint, artifactType ArtifactType) (*Artifact, error) {
	var artifact Artifact
	err := d.db.Where("scan_id = ? AND type = ?", scanID, artifactType).First(&artifact).Error
	if err != nil {
		return nil, err
	}
	return &artifact, nil
}
