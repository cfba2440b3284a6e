package classify

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/vk/featuregrid/internal/feature"
)

// GoSource recovers a compiled routine's text from the Go file it was built
// from. It only works where that file is still on disk, which holds for
// tests and local runs and usually not for shipped binaries.
type GoSource struct {
	mu    sync.Mutex
	files map[string]*parsedFile
}

type parsedFile struct {
	fset *token.FileSet
	file *ast.File
	src  []byte
}

// NewGoSource returns a provider with an empty parse cache.
func NewGoSource() *GoSource {
	return &GoSource{files: make(map[string]*parsedFile)}
}

// Source implements SourceProvider.
func (g *GoSource) Source(f *feature.Feature) string {
	if f.Routine == nil {
		return ""
	}
	var parts []string
	if f.Routine.Row != nil {
		parts = append(parts, g.funcText(f.Routine.Row))
	}
	if f.Routine.Group != nil {
		parts = append(parts, g.funcText(f.Routine.Group))
	}
	return strings.Join(parts, "\n")
}

func (g *GoSource) funcText(fn any) string {
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return ""
	}
	path, line := rf.FileLine(rf.Entry())
	pf := g.parse(path)
	if pf == nil {
		return ""
	}

	// The innermost function whose lines enclose the entry line is the routine.
	var best ast.Node
	ast.Inspect(pf.file, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
		default:
			return true
		}
		start := pf.fset.Position(n.Pos()).Line
		end := pf.fset.Position(n.End()).Line
		if start <= line && line <= end {
			best = n
		}
		return true
	})
	if best == nil {
		return ""
	}
	from := pf.fset.Position(best.Pos()).Offset
	to := pf.fset.Position(best.End()).Offset
	return string(pf.src[from:to])
}

func (g *GoSource) parse(path string) *parsedFile {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pf, ok := g.files[path]; ok {
		return pf
	}
	src, err := os.ReadFile(path)
	if err != nil {
		g.files[path] = nil
		return nil
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		g.files[path] = nil
		return nil
	}
	pf := &parsedFile{fset: fset, file: file, src: src}
	g.files[path] = pf
	return pf
}
