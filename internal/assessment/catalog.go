package assessment

var reference = []Question{
	{
		ID: 1, Dimension: RiskTolerance,
		Text: "You have lost money on five trading days in a row this week. How do you respond?",
		Options: []Option{
			{Label: "Review every trade strictly and find the problem", Score: 100},
			{Label: "Pause trading and continue after thinking it over calmly", Score: 80},
			{Label: "Keep executing the original plan; losses are normal", Score: 60},
			{Label: "Increase position size to win the losses back quickly", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 2, Dimension: RiskTolerance,
		Text: "What is the largest single-day drawdown you can accept?",
		Options: []Option{
			{Label: "Within 5%, I need to control risk strictly", Score: 100},
			{Label: "Within 10%, some volatility is acceptable", Score: 80},
			{Label: "Within 20%, as long as I end up profitable", Score: 40},
			{Label: "No limit, as long as I can make big money", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 3, Dimension: RiskTolerance,
		Text: "How do you view losses in trading?",
		Options: []Option{
			{Label: "Losses are part of trading; the key is keeping them within an acceptable range", Score: 100},
			{Label: "Losses make me uncomfortable, but I understand they are inevitable", Score: 70},
			{Label: "Every loss makes me feel frustrated", Score: 40},
			{Label: "Losses are unacceptable; I want to avoid all of them", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 4, Dimension: RiskTolerance,
		Text: "Your account grew 50% in one month. What do you do?",
		Options: []Option{
			{Label: "Keep the current strategy without changing size or risk management", Score: 100},
			{Label: "Increase size moderately while still controlling risk strictly", Score: 80},
			{Label: "Increase size noticeably to ride the momentum", Score: 30},
			{Label: "Add heavily to seize the opportunity", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 5, Dimension: Discipline,
		Text: "After making a trading plan, the market behaves differently than expected. You:",
		Options: []Option{
			{Label: "Follow the plan strictly and take the stop", Score: 100},
			{Label: "Watch briefly near the stop but do not delay long", Score: 70},
			{Label: "Adjust the plan to live conditions", Score: 40},
			{Label: "Move the stop to give the trade more room", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 6, Dimension: Discipline,
		Text: "How do you view moving a stop loss?",
		Options: []Option{
			{Label: "Never move a stop; it is a cardinal sin", Score: 100},
			{Label: "Not unless there is a specific technical signal", Score: 60},
			{Label: "Adjust flexibly as the market changes", Score: 20},
			{Label: "Move stops often to give trades more chances", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 7, Dimension: Discipline,
		Text: "You missed what you considered a perfect entry. You:",
		Options: []Option{
			{Label: "Accept it and wait for the next setup that fits the rules", Score: 100},
			{Label: "Feel regret but do not chase", Score: 80},
			{Label: "Try to enter at a second-best price", Score: 30},
			{Label: "Chase immediately; I cannot miss a money-making chance", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 8, Dimension: Discipline,
		Text: "How often do you execute strictly according to your trading plan?",
		Options: []Option{
			{Label: "Every time, without exception", Score: 100},
			{Label: "Most of the time, with occasional deviations", Score: 70},
			{Label: "I often adjust the plan by feel", Score: 30},
			{Label: "The plan is just a reference; I trade by feel", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 9, Dimension: EmotionalStability,
		Text: "After a large winning trade, your emotional state is:",
		Options: []Option{
			{Label: "Calm; it is just the result of executing the strategy", Score: 100},
			{Label: "Happy, but back to normal quickly", Score: 80},
			{Label: "Very excited and eager to keep trading", Score: 40},
			{Label: "Ecstatic; I feel I have found the secret to making money", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 10, Dimension: EmotionalStability,
		Text: "You are taking a series of small losses. Your state of mind is:",
		Options: []Option{
			{Label: "Calm, continuing to follow the strategy", Score: 100},
			{Label: "Somewhat irritated but in control", Score: 70},
			{Label: "Anxious and starting to doubt the strategy", Score: 40},
			{Label: "Very irritated and wanting to win it back right away", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 11, Dimension: EmotionalStability,
		Text: "How do you handle pressure while trading?",
		Options: []Option{
			{Label: "Strict risk management leaves almost no pressure", Score: 100},
			{Label: "I pause trading under pressure and reset", Score: 80},
			{Label: "I can handle some pressure, but it affects performance", Score: 50},
			{Label: "The pressure is heavy and I am often anxious", Score: 20},
		},
	},
	{
		ID: 12, Dimension: EmotionalStability,
		Text: "The market moves completely against your view. Your reaction is:",
		Options: []Option{
			{Label: "Accept it and take the stop without emotion", Score: 100},
			{Label: "Disappointed, but I handle it rationally", Score: 80},
			{Label: "Frustrated and need time to recover", Score: 40},
			{Label: "I cannot accept it and want to win it back immediately", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 13, Dimension: PatienceFocus,
		Text: "What is the longest you can watch the market without trading while waiting for a signal?",
		Options: []Option{
			{Label: "Several days, until a perfect signal appears", Score: 100},
			{Label: "A whole day", Score: 80},
			{Label: "A few hours at most before I want to trade", Score: 40},
			{Label: "I can hardly stand not trading", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 14, Dimension: PatienceFocus,
		Text: "How do you view frequent trading?",
		Options: []Option{
			{Label: "Avoid it; act only at the best moments", Score: 100},
			{Label: "Trade moderately, not excessively", Score: 70},
			{Label: "Keep a steady frequency to catch opportunities", Score: 30},
			{Label: "More trades means more money", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 15, Dimension: PatienceFocus,
		Text: "What is your attitude to waiting for a trading opportunity?",
		Options: []Option{
			{Label: "I wait patiently and never act unless conditions are met", Score: 100},
			{Label: "I can wait but need to remind myself", Score: 70},
			{Label: "Waiting makes me anxious and I lower my standards", Score: 30},
			{Label: "I would rather try a second-best opportunity than wait", Score: 0},
		},
	},
	{
		ID: 16, Dimension: PatienceFocus,
		Text: "How do you feel about working alone, undisturbed, for eight hours straight?",
		Options: []Option{
			{Label: "No problem at all; that is my ideal way of working", Score: 100},
			{Label: "I can do it with some breaks", Score: 80},
			{Label: "It is fairly hard and tiring", Score: 40},
			{Label: "I cannot; I need to talk to people often", Score: 0},
		},
	},
	{
		ID: 17, Dimension: LearningMotivation,
		Text: "What do you hope to achieve through trader training?",
		Options: []Option{
			{Label: "Become a professional, consistently profitable trader", Score: 100},
			{Label: "Master systematic trading skills and reach financial freedom", Score: 80},
			{Label: "Make money fast and improve my life", Score: 20},
			{Label: "Get rich quickly", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 18, Dimension: LearningMotivation,
		Text: "How soon do you expect to become consistently profitable?",
		Options: []Option{
			{Label: "More than a year; trading takes long practice", Score: 100},
			{Label: "Six months to a year", Score: 80},
			{Label: "Three to six months", Score: 50},
			{Label: "Within a month", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 19, Dimension: LearningMotivation,
		Text: "If you were asked to leave during training, how would you take it?",
		Options: []Option{
			{Label: "Accept it; it means this path is not for me", Score: 100},
			{Label: "Disappointed, but I respect the professional judgment", Score: 80},
			{Label: "Hard to accept; I would ask for another chance", Score: 30},
			{Label: "Unacceptable; it would be the platform's fault", Score: 0, RedFlag: true},
		},
	},
	{
		ID: 20, Dimension: LearningMotivation,
		Text: "How much do you agree that trading is a craft that takes lifelong learning?",
		Options: []Option{
			{Label: "Completely; I am ready to keep learning for the long term", Score: 100},
			{Label: "Mostly; I will keep learning", Score: 80},
			{Label: "Partly; the basics are enough", Score: 40},
			{Label: "Not at all; once learned it works forever", Score: 0},
		},
	},
}

// ReferenceCatalog returns the 20-question catalog used by the program,
// four questions per dimension.
func ReferenceCatalog() *Catalog {
	return NewCatalog(reference)
}
