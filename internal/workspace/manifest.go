package workspace

// TemplateToken is the reserved placeholder inside namelist files that is
// replaced with the absolute template path during materialization. The match
// is literal and applied in a single pass; there is no recursive expansion.
const TemplateToken = "#{template}"

// commonEntries is the part of the MESA work tree every run needs.
var commonEntries = []string{
	"clean",
	"mk",
	"re",
	"rn",
	"inlist",
	"inlist_project",
	"src",
	"make",
}

// binaryEntries extends the manifest for binary-evolution runs.
var binaryEntries = []string{
	"inlist1",
	"inlist2",
}

// Manifest returns the template entries (files or directories) that must be
// present in the template root and are copied into every run directory.
func Manifest(binaryEvolution bool) []string {
	entries := make([]string, 0, len(commonEntries)+len(binaryEntries))
	entries = append(entries, commonEntries...)
	if binaryEvolution {
		entries = append(entries, binaryEntries...)
	}
	return entries
}
