package database

import "impound-lot-finder/internal/models"

// DefaultFacilities is the impound lot set seeded into an empty store
func DefaultFacilities() []models.Facility {
	return []models.Facility{
		{
			ID:      1,
			Name:    "Pátio Central – Zona Sul",
			Address: "Rua das Acácias, 123 – Zona Sul, São Paulo – SP",
			Phone:   "(11) 3333-1111",
			Hours:   "Seg a Sex: 8h às 18h | Sáb: 8h às 12h",
			Lat:     -23.5505,
			Lng:     -46.6333,
		},
		{
			ID:      2,
			Name:    "Pátio Norte – Vila Esperança",
			Address: "Av. das Flores, 456 – Zona Norte, São Paulo – SP",
			Phone:   "(11) 3333-2222",
			Hours:   "Seg a Sáb: 7h às 19h",
			Lat:     -23.49,
			Lng:     -46.62,
		},
		{
			ID:      3,
			Name:    "Pátio Leste – Jardim Aurora",
			Address: "Rua do Progresso, 789 – Zona Leste, São Paulo – SP",
			Phone:   "(11) 3333-3333",
			Hours:   "Seg a Sex: 8h às 17h",
			Lat:     -23.56,
			Lng:     -46.55,
		},
		{
			ID:      4,
			Name:    "Pátio Oeste – Bairro Industrial",
			Address: "Rua das Máquinas, 321 – Zona Oeste, São Paulo – SP",
			Phone:   "(11) 3333-4444",
			Hours:   "Seg a Sex: 7h às 18h | Sáb: 8h às 13h",
			Lat:     -23.535,
			Lng:     -46.72,
		},
		{
			ID:      5,
			Name:    "Pátio Centro – Bela Vista",
			Address: "Av. Paulista, 999 – Bela Vista, São Paulo – SP",
			Phone:   "(11) 3333-5555",
			Hours:   "Seg a Sex: 8h às 20h | Sáb: 8h às 14h",
			Lat:     -23.5616,
			Lng:     -46.6559,
		},
	}
}
