package schema

// NewDirectory builds a Directory vertex for an absolute path.
func NewDirectory(absPath, name string) Vertex {
	return Vertex{
		ID:            NewDirectoryID(absPath),
		Label:         LabelDirectory,
		Language:      LangFilesystem,
		Name:          name,
		QualifiedName: absPath,
		Attributes:    map[string]any{},
	}
}

// NewFile builds a File vertex for an absolute path.
func NewFile(absPath, name string, lang LanguageTag) Vertex {
	return Vertex{
		ID:            NewFileID(absPath),
		Label:         LabelFile,
		Language:      lang,
		Name:          name,
		QualifiedName: absPath,
		Attributes:    map[string]any{},
	}
}

// NewNamespace builds a Namespace vertex.
func NewNamespace(fqn, name string, lang LanguageTag) Vertex {
	return Vertex{
		ID:            NewNamespaceID(fqn),
		Label:         LabelNamespace,
		Language:      lang,
		Name:          name,
		QualifiedName: fqn,
		Attributes:    map[string]any{},
	}
}

func newSymbol(label Label, lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return Vertex{
		ID:            NewSymbolID(lang, fqn),
		Label:         label,
		Language:      lang,
		Name:          name,
		QualifiedName: fqn,
		Location:      loc,
		Attributes:    map[string]any{},
	}
}

func NewClass(lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return newSymbol(LabelClass, lang, fqn, name, loc)
}

func NewInterface(lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return newSymbol(LabelInterface, lang, fqn, name, loc)
}

func NewTrait(lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return newSymbol(LabelTrait, lang, fqn, name, loc)
}

func NewFunction(lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return newSymbol(LabelFunction, lang, fqn, name, loc)
}

func NewConstantSym(lang LanguageTag, fqn, name string, loc *Location) Vertex {
	return newSymbol(LabelConstant, lang, fqn, name, loc)
}

// NewMethod builds a Method vertex owned by classFQN.
func NewMethod(lang LanguageTag, classFQN, name string, loc *Location) Vertex {
	return Vertex{
		ID:            NewMemberID(lang, classFQN, name),
		Label:         LabelMethod,
		Language:      lang,
		Name:          name,
		QualifiedName: classFQN + "::" + name,
		Location:      loc,
		Attributes:    map[string]any{},
	}
}

// NewProperty builds a Property vertex owned by classFQN.
func NewProperty(lang LanguageTag, classFQN, name string, loc *Location) Vertex {
	return Vertex{
		ID:            NewMemberID(lang, classFQN, name),
		Label:         LabelProperty,
		Language:      lang,
		Name:          name,
		QualifiedName: classFQN + "::" + name,
		Location:      loc,
		Attributes:    map[string]any{},
	}
}

// NewConstant builds a class-owned Constant vertex (distinct id space from
// a top-level Constant, since it hashes as a member, not a symbol).
func NewConstant(lang LanguageTag, classFQN, name string, loc *Location) Vertex {
	return Vertex{
		ID:            NewMemberID(lang, classFQN, name),
		Label:         LabelConstant,
		Language:      lang,
		Name:          name,
		QualifiedName: classFQN + "::" + name,
		Location:      loc,
		Attributes:    map[string]any{},
	}
}

// NewModule builds a JS Module vertex, distinct from the File vertex for
// the same path (spec.md §4.5 point 1: same file, different role).
func NewModule(absPath, name string) Vertex {
	return Vertex{
		ID:            NewModuleID(absPath),
		Label:         LabelModule,
		Language:      LangJavaScript,
		Name:          name,
		QualifiedName: absPath,
		Attributes:    map[string]any{},
	}
}

// NewEndpoint builds an Endpoint vertex; qualified_name is exactly
// "<METHOD> <path>" per spec.md §6.3.
func NewEndpoint(method, path string) Vertex {
	norm := NormalizeEndpointPath(path)
	method = normalizeMethod(method)
	return Vertex{
		ID:            NewEndpointID(method, norm),
		Label:         LabelEndpoint,
		Language:      LangAPI,
		Name:          method + " " + norm,
		QualifiedName: method + " " + norm,
		Attributes:    map[string]any{"method": method, "path": norm},
	}
}

func normalizeMethod(m string) string {
	out := make([]byte, len(m))
	for i := 0; i < len(m); i++ {
		c := m[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// NewUnresolved builds a transient placeholder vertex. kind is the
// eventual concrete label this placeholder stands in for (e.g. "Class",
// "Method"); when a real vertex with the same id is later written, the
// two merge by id (spec.md §3.3, §3.5 invariant 6).
func NewUnresolved(kind, fqnOrName string, lang LanguageTag) Vertex {
	return Vertex{
		ID:            NewUnresolvedID(lang, kind, fqnOrName),
		Label:         LabelUnresolved,
		Language:      lang,
		Name:          fqnOrName,
		QualifiedName: fqnOrName,
		Attributes:    map[string]any{"unresolved_kind": kind},
	}
}

// NewConfigFile builds a ConfigFile vertex for §6.2 metadata enrichment.
func NewConfigFile(absPath string) Vertex {
	return Vertex{
		ID:            NewFileID(absPath),
		Label:         LabelConfigFile,
		Language:      LangFramework,
		Name:          absPath,
		QualifiedName: absPath,
		Attributes:    map[string]any{},
	}
}
