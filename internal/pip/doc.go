// Package pip wraps the external Python package installer.
//
// It shells out to pip (or any argv prefix such as `python3 -m pip`) via
// os/exec for two operations:
//   - Install: `pip install --force-reinstall -r <manifest>`, with the
//     installer's own output streamed to the console
//   - List: `pip list --format=json`, decoded into model.Package values
//
// Filter narrows a listing to the packages whose name contains one of the
// configured substrings; Report combines List and Filter for the report step.
//
// Dependency resolution stays entirely inside pip. This package never
// inspects the manifest and never retries: a failed install is reported
// through InstallResult and the returned error, and the caller decides
// whether to continue.
package pip
