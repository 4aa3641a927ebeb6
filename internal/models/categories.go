package models

import (
	"fmt"
	"strings"
)

// Document categories, in display order.
const (
	CategoryProcessFlowChart     = "Process Flow Chart"
	CategoryPFMEA                = "PFMEA"
	CategoryControlPlan          = "Control Plan"
	CategoryProcessParameters    = "Process Parameters"
	CategorySAPBOM               = "SAP BOM"
	CategoryLabelArtwork         = "Label Artwork"
	CategoryCycleTimeStudy       = "Cycle Time Study"
	CategoryAssemblyQualReport   = "Assembly Qualification Report"
	CategoryPackagingDocument    = "Packaging Document"
	CategoryWI                   = "WI"
	CategorySOP                  = "SOP"
	CategoryStencilToolsFixtures = "Stencil, Tools & Fixtures"
	CategoryLessonsLearnt        = "Lessons Learnt"
	CategoryOtherDocuments       = "Other Documents"
)

// Categories is the fixed set of 14 document categories.
var Categories = []string{
	CategoryProcessFlowChart,
	CategoryPFMEA,
	CategoryControlPlan,
	CategoryProcessParameters,
	CategorySAPBOM,
	CategoryLabelArtwork,
	CategoryCycleTimeStudy,
	CategoryAssemblyQualReport,
	CategoryPackagingDocument,
	CategoryWI,
	CategorySOP,
	CategoryStencilToolsFixtures,
	CategoryLessonsLearnt,
	CategoryOtherDocuments,
}

var categoryAliases = map[string]string{
	"stencil/tools & fixtures": CategoryStencilToolsFixtures,
	"stencil, tools and fixtures": CategoryStencilToolsFixtures,
}

// ParseCategory maps user input onto a canonical category name. Matching is
// case-insensitive and also accepts the folder form ("Control_Plan").
func ParseCategory(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	for _, c := range Categories {
		if strings.ToLower(c) == norm {
			return c, nil
		}
	}
	if c, ok := categoryAliases[norm]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown document category %q", s)
}

// CategoryFolder is the sub-directory of a project directory that holds the
// files of a category.
func CategoryFolder(category string) string {
	return strings.ReplaceAll(category, " ", "_")
}
