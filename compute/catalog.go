package compute

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ImageCatalog maps an osType to the machine image it is launched from.
type ImageCatalog map[string]string

type catalogFile struct {
	Images map[string]string `yaml:"images"`
}

// LoadImageCatalog reads a YAML file of the form
//
//	images:
//	  ubuntu22: ami-0a1b2c3d4e5f67890
//
// An empty path yields an empty catalog.
func LoadImageCatalog(path string) (ImageCatalog, error) {
	if path == "" {
		return ImageCatalog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "LoadImageCatalog")
	}
	return ParseImageCatalog(data)
}

func ParseImageCatalog(data []byte) (ImageCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "ParseImageCatalog")
	}
	catalog := ImageCatalog{}
	for osType, image := range file.Images {
		osType = strings.TrimSpace(osType)
		image = strings.TrimSpace(image)
		if osType == "" || image == "" {
			return nil, errors.Errorf("ParseImageCatalog: empty entry %q: %q", osType, image)
		}
		catalog[osType] = image
	}
	return catalog, nil
}

// ImageFor returns the image for osType. Unmapped types are used as the image
// id verbatim.
func (c ImageCatalog) ImageFor(osType string) string {
	if image, ok := c[osType]; ok {
		return image
	}
	return osType
}
