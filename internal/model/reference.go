package model

// Trades is the catalogue of specialties an emergency or artisan can carry.
var Trades = []string{
    "Plomberie",
    "Électricité",
    "Serrurerie",
    "Couverture",
    "Chauffage",
    "Menuiserie",
    "Maçonnerie",
    "Peinture",
    "Vitrerie",
    "Climatisation",
}

// Arrondissement is one of the twenty Paris districts.
type Arrondissement struct {
    ID   int    `json:"id"`
    Name string `json:"name"`
}

var Arrondissements = []Arrondissement{
    {1, "1er - Louvre"},
    {2, "2e - Bourse"},
    {3, "3e - Temple"},
    {4, "4e - Hôtel-de-Ville"},
    {5, "5e - Panthéon"},
    {6, "6e - Luxembourg"},
    {7, "7e - Palais-Bourbon"},
    {8, "8e - Élysée"},
    {9, "9e - Opéra"},
    {10, "10e - Entrepôt"},
    {11, "11e - Popincourt"},
    {12, "12e - Reuilly"},
    {13, "13e - Gobelins"},
    {14, "14e - Observatoire"},
    {15, "15e - Vaugirard"},
    {16, "16e - Passy"},
    {17, "17e - Batignolles-Monceau"},
    {18, "18e - Butte-Montmartre"},
    {19, "19e - Buttes-Chaumont"},
    {20, "20e - Ménilmontant"},
}

func ValidTrade(t string) bool { return StringList(Trades).Contains(t) }

func ValidArrondissement(n int) bool { return n >= 1 && n <= len(Arrondissements) }
