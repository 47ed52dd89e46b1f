package catalog

import "sanctioncore/pkg/domain"

var defaultTable = map[domain.Severity][]domain.SanctionTemplate{
	1: {
		{
			Title:            "Tidy the shoe rack",
			Description:      "Shoes were left in the hallway again.",
			Task:             "Sort and wipe every pair on the shoe rack.",
			Quantity:         10,
			Unit:             domain.UnitMinutes,
			Category:         domain.CategoryHousehold,
			EscalationFactor: 5,
		},
		{
			Title:            "Early screen curfew",
			Description:      "A small slip that costs a little evening screen time.",
			Task:             "Switch off all screens earlier than usual.",
			Quantity:         30,
			Unit:             domain.UnitMinutes,
			Category:         domain.CategoryScreenTime,
			EscalationFactor: 15,
		},
		{
			Title:            "Warning strike",
			Description:      "A formal warning recorded on the board.",
			Task:             "Accept a strike; three strikes trigger a higher severity.",
			Quantity:         1,
			Unit:             domain.UnitStrikes,
			Category:         domain.CategorySocial,
			EscalationFactor: 1,
		},
	},
	2: {
		{
			Title:            "Push-up set",
			Description:      "Burn off the slip with some exercise.",
			Task:             "Do the push-ups in clean sets before the deadline.",
			Quantity:         10,
			Unit:             domain.UnitTimes,
			Category:         domain.CategoryFitness,
			EscalationFactor: 5,
		},
		{
			Title:            "Dish duty",
			Description:      "Take over the dishes for the household.",
			Task:             "Wash, dry and put away the dishes after dinner.",
			Quantity:         2,
			Unit:             domain.UnitDays,
			Category:         domain.CategoryHousehold,
			EscalationFactor: 1,
		},
		{
			Title:            "Reading block",
			Description:      "Quiet study time instead of entertainment.",
			Task:             "Read non-fiction and summarise it in three sentences.",
			Quantity:         45,
			Unit:             domain.UnitMinutes,
			Category:         domain.CategoryLearning,
			EscalationFactor: 15,
		},
	},
	3: {
		{
			Title:            "Bathroom deep clean",
			Description:      "The whole bathroom, including grout and mirrors.",
			Task:             "Scrub tub, sink, toilet and floor until inspected.",
			Quantity:         1,
			Unit:             domain.UnitTimes,
			Category:         domain.CategoryHousehold,
			EscalationFactor: 1,
		},
		{
			Title:            "Phone lockdown",
			Description:      "The phone goes into the drawer.",
			Task:             "Hand over the phone for the agreed number of hours.",
			Quantity:         4,
			Unit:             domain.UnitHours,
			Category:         domain.CategoryScreenTime,
			EscalationFactor: 2,
		},
		{
			Title:            "Morning run",
			Description:      "Get out of bed and run before breakfast.",
			Task:             "Run the neighbourhood loop on consecutive mornings.",
			Quantity:         3,
			Unit:             domain.UnitDays,
			Category:         domain.CategoryFitness,
			EscalationFactor: 1.5,
		},
		{
			Title:            "Cold shower",
			Description:      "Comfort is suspended for a while.",
			Task:             "Take cold showers only.",
			Quantity:         3,
			Unit:             domain.UnitTimes,
			Category:         domain.CategoryComfort,
			EscalationFactor: 2,
		},
	},
	4: {
		{
			Title:            "Social media fast",
			Description:      "No feeds, no stories, no scrolling.",
			Task:             "Stay logged out of every social network.",
			Quantity:         3,
			Unit:             domain.UnitDays,
			Category:         domain.CategorySocial,
			EscalationFactor: 2,
		},
		{
			Title:            "Screen budget",
			Description:      "Daily recreational screen time is capped.",
			Task:             "Keep recreational screen time under the daily cap.",
			Quantity:         1,
			Unit:             domain.UnitHoursPerDay,
			Category:         domain.CategoryScreenTime,
			EscalationFactor: 1,
		},
		{
			Title:            "Garage sort-out",
			Description:      "The garage has been ignored long enough.",
			Task:             "Sort, label and sweep the garage.",
			Quantity:         3,
			Unit:             domain.UnitHours,
			Category:         domain.CategoryHousehold,
			EscalationFactor: 1,
		},
	},
	5: {
		{
			Title:            "Week of chores",
			Description:      "Every shared chore belongs to you for a week.",
			Task:             "Take over all shared household chores.",
			Quantity:         7,
			Unit:             domain.UnitDays,
			Category:         domain.CategoryHousehold,
			EscalationFactor: 3,
		},
		{
			Title:            "Comfort ban",
			Description:      "No sofa, no snacks, no lie-ins.",
			Task:             "Give up the listed comforts completely.",
			Quantity:         5,
			Unit:             domain.UnitDays,
			Category:         domain.CategoryComfort,
			EscalationFactor: 2,
		},
		{
			Title:            "Study marathon",
			Description:      "Structured learning replaces free time.",
			Task:             "Complete an online course module with notes.",
			Quantity:         6,
			Unit:             domain.UnitHours,
			Category:         domain.CategoryLearning,
			EscalationFactor: 2.5,
		},
	},
}

// Default returns the built-in catalog.
func Default() Catalog {
	return MustNew(defaultTable)
}
