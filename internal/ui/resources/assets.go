// Package resources serves the dashboard's static assets.
package resources

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// AssetVersion is appended to asset URLs so browsers drop cached copies of
// embedded assets after an upgrade. Set with -ldflags at build time.
var AssetVersion = "dev"

// StaticPath returns the URL path for a static asset.
func StaticPath(path string) string {
	return "/static/" + path + "?v=" + AssetVersion
}
