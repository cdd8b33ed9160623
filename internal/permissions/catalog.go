// Package permissions defines the fixed universe of modules and actions the
// back office knows about, together with the per-role default grant sets.
// The catalog is static configuration: it is built once at startup and never
// mutated afterwards.
package permissions

// Role is the closed set of user roles. The administrator bypass in the
// authorization service matches on RoleAdministrator before any grant lookup,
// so administrator access can never be stripped by editing grant rows.
type Role string

const (
	RoleAdministrator Role = "administrador"
	RoleCashier       Role = "cajero"
	RoleAppraiser     Role = "tasador"
	RoleSeller        Role = "vendedor"
	RoleSupervisor    Role = "supervisor"
)

// AllRoles lists every valid role, administrator first.
var AllRoles = []Role{
	RoleAdministrator,
	RoleCashier,
	RoleAppraiser,
	RoleSeller,
	RoleSupervisor,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleCashier, RoleAppraiser, RoleSeller, RoleSupervisor:
		return true
	}
	return false
}

// IsAdministrator reports whether r is the administrator role.
func (r Role) IsAdministrator() bool {
	return r == RoleAdministrator
}

// Grant is a single (module, action) authorization tuple.
type Grant struct {
	Module string `json:"modulo"`
	Action string `json:"accion"`
}

// ModuleGrants groups a module's actions for API responses and sync requests.
type ModuleGrants struct {
	Module  string   `json:"modulo"`
	Actions []string `json:"acciones"`
}

// moduleOrder fixes the presentation and seeding order of modules.
var moduleOrder = []string{
	"dashboard",
	"clientes",
	"sucursales",
	"simulador",
	"creditos",
	"prendas",
	"ventas",
	"caja",
	"cobros",
	"historial",
	"reportes",
	"usuarios",
}

// moduleActions is the full catalog of valid actions per module.
var moduleActions = map[string][]string{
	"dashboard":  {"ver"},
	"clientes":   {"ver", "crear", "editar", "eliminar"},
	"sucursales": {"ver", "crear", "editar", "eliminar"},
	"simulador":  {"usar", "imprimir", "guardar"},
	"creditos":   {"ver", "crear", "renovar", "cancelar", "pasar_venta"},
	"prendas":    {"ver", "editar", "cambiar_estado", "vender"},
	"ventas":     {"ver", "tasar", "vender", "apartar", "crear_plan_pago", "modificar_precio", "aplicar_descuento"},
	"caja":       {"abrir", "cerrar", "ver_movimientos"},
	"cobros":     {"realizar", "ver", "imprimir_recibo"},
	"historial":  {"ver"},
	"reportes":   {"generar", "exportar"},
	"usuarios":   {"ver", "crear", "editar", "eliminar", "asignar_permisos"},
}

// roleDefaults is the template grant set installed by AssignDefaultPermissions.
// The administrator role is special-cased in DefaultsFor and grants the whole
// catalog, so it has no entry here.
var roleDefaults = map[Role][]ModuleGrants{
	RoleCashier: {
		{Module: "dashboard", Actions: []string{"ver"}},
		{Module: "clientes", Actions: []string{"ver", "crear"}},
		{Module: "creditos", Actions: []string{"ver", "crear"}},
		{Module: "caja", Actions: []string{"abrir", "cerrar", "ver_movimientos"}},
		{Module: "cobros", Actions: []string{"realizar", "ver", "imprimir_recibo"}},
		{Module: "prendas", Actions: []string{"ver"}},
		{Module: "historial", Actions: []string{"ver"}},
	},
	RoleAppraiser: {
		{Module: "dashboard", Actions: []string{"ver"}},
		{Module: "clientes", Actions: []string{"ver"}},
		{Module: "simulador", Actions: []string{"usar", "imprimir", "guardar"}},
		{Module: "prendas", Actions: []string{"ver"}},
		{Module: "ventas", Actions: []string{"ver", "tasar"}},
		{Module: "historial", Actions: []string{"ver"}},
	},
	RoleSeller: {
		{Module: "dashboard", Actions: []string{"ver"}},
		{Module: "clientes", Actions: []string{"ver", "crear"}},
		{Module: "ventas", Actions: []string{"ver", "vender", "apartar", "crear_plan_pago", "aplicar_descuento"}},
		{Module: "prendas", Actions: []string{"ver"}},
		{Module: "historial", Actions: []string{"ver"}},
	},
	RoleSupervisor: {
		{Module: "dashboard", Actions: []string{"ver"}},
		{Module: "clientes", Actions: []string{"ver"}},
		{Module: "creditos", Actions: []string{"ver", "renovar"}},
		{Module: "prendas", Actions: []string{"ver", "cambiar_estado"}},
		{Module: "ventas", Actions: []string{"ver", "modificar_precio", "aplicar_descuento"}},
		{Module: "reportes", Actions: []string{"generar", "exportar"}},
		{Module: "caja", Actions: []string{"ver_movimientos"}},
		{Module: "historial", Actions: []string{"ver"}},
	},
}

// Catalog is the immutable permission universe. Construct it once with
// NewCatalog and inject it wherever permission resolution is needed.
type Catalog struct {
	lookup map[Grant]struct{}
}

// NewCatalog builds the catalog from the static module/action tables.
func NewCatalog() *Catalog {
	lookup := make(map[Grant]struct{})
	for _, module := range moduleOrder {
		for _, action := range moduleActions[module] {
			lookup[Grant{Module: module, Action: action}] = struct{}{}
		}
	}
	return &Catalog{lookup: lookup}
}

// Contains reports whether (module, action) exists in the catalog.
func (c *Catalog) Contains(module, action string) bool {
	_, ok := c.lookup[Grant{Module: module, Action: action}]
	return ok
}

// Modules returns the catalog's modules in presentation order.
func (c *Catalog) Modules() []string {
	out := make([]string, len(moduleOrder))
	copy(out, moduleOrder)
	return out
}

// Actions returns the valid actions for a module, or nil for an unknown module.
func (c *Catalog) Actions(module string) []string {
	actions, ok := moduleActions[module]
	if !ok {
		return nil
	}
	out := make([]string, len(actions))
	copy(out, actions)
	return out
}

// AllGrants returns every (module, action) tuple, module order first.
func (c *Catalog) AllGrants() []Grant {
	var grants []Grant
	for _, module := range moduleOrder {
		for _, action := range moduleActions[module] {
			grants = append(grants, Grant{Module: module, Action: action})
		}
	}
	return grants
}

// Formatted returns the full catalog grouped by module, the same shape the
// permission endpoints respond with.
func (c *Catalog) Formatted() []ModuleGrants {
	out := make([]ModuleGrants, 0, len(moduleOrder))
	for _, module := range moduleOrder {
		out = append(out, ModuleGrants{Module: module, Actions: c.Actions(module)})
	}
	return out
}

// Resolve filters a requested grant list down to tuples that exist in the
// catalog. Unknown (module, action) pairs are silently dropped; this is the
// resolution step shared by sync and default assignment.
func (c *Catalog) Resolve(requested []ModuleGrants) []Grant {
	var grants []Grant
	for _, mg := range requested {
		for _, action := range mg.Actions {
			if c.Contains(mg.Module, action) {
				grants = append(grants, Grant{Module: mg.Module, Action: action})
			}
		}
	}
	return grants
}

// DefaultsFor returns the default grant set for a role. The administrator
// role receives the entire catalog. The second result is false for roles the
// default table does not know.
func (c *Catalog) DefaultsFor(role Role) ([]Grant, bool) {
	if role.IsAdministrator() {
		return c.AllGrants(), true
	}
	defaults, ok := roleDefaults[role]
	if !ok {
		return nil, false
	}
	return c.Resolve(defaults), true
}

// RoleDefaultsFormatted returns a role's default grants grouped by module,
// for the role-defaults endpoint. False when the role is unknown.
func (c *Catalog) RoleDefaultsFormatted(role Role) ([]ModuleGrants, bool) {
	if role.IsAdministrator() {
		return c.Formatted(), true
	}
	defaults, ok := roleDefaults[role]
	if !ok {
		return nil, false
	}
	out := make([]ModuleGrants, 0, len(defaults))
	for _, mg := range defaults {
		actions := make([]string, len(mg.Actions))
		copy(actions, mg.Actions)
		out = append(out, ModuleGrants{Module: mg.Module, Actions: actions})
	}
	return out, true
}
