package pos

// Role distinguishes a sale (cliente) from a purchase (proveedor).
type Role string

const (
	RoleCustomer Role = "cliente"
	RoleSupplier Role = "proveedor"
)

// Party is the counterparty of an invoice.
type Party struct {
	ID    string `json:"id"`
	Name  string `json:"nombre"`
	TaxID string `json:"rnc"`
	Role  Role   `json:"tipo"`
}

// FinalConsumer is the anonymous walk-in customer selected by default.
func FinalConsumer() Party {
	return Party{
		ID:    "cf",
		Name:  "Consumidor Final",
		TaxID: "000-000000-0",
		Role:  RoleCustomer,
	}
}

func (p Party) IsSupplier() bool { return p.Role == RoleSupplier }

// MovementKind is the cash-ledger kind an invoice for this party produces.
func (p Party) MovementKind() MovementKind {
	if p.IsSupplier() {
		return MovementExpense
	}
	return MovementSale
}

func (p Party) validate() error {
	if p.ID == "" {
		return invalid("cliente", "Seleccione un cliente")
	}
	if p.Role != RoleCustomer && p.Role != RoleSupplier {
		return invalid("tipo", "Tipo de cliente inválido")
	}
	return nil
}
