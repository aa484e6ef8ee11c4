package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/mmr-tortoise/bootcheck/internal/model"
)

// printPackages prints a package listing as an aligned two-column table.
//
//	PACKAGE     VERSION
//	jieba       0.42.1
//	streamlit   1.30.0
func printPackages(w io.Writer, pkgs []model.Package) {
	fmt.Fprint(w, formatPackages(pkgs))
}

// formatPackages renders the table printed by printPackages. The name
// column is as wide as the longest name.
func formatPackages(pkgs []model.Package) string {
	if len(pkgs) == 0 {
		return "No matching packages installed.\n"
	}

	width := len("PACKAGE")
	for _, p := range pkgs {
		if len(p.Name) > width {
			width = len(p.Name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s   %s\n", width, "PACKAGE", "VERSION")
	for _, p := range pkgs {
		fmt.Fprintf(&b, "%-*s   %s\n", width, p.Name, p.Version)
	}
	return b.String()
}
