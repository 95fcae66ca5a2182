package bot

// Fixed user-facing messages. Internal errors never reach the chat
// verbatim; every failure kind maps to exactly one of these strings.
const (
	msgWelcome = `👋 Welcome to Expense Tracker Bot! 📊💰

I can help you track your expenses, categorize them, and save them to your spreadsheet automatically. 📝📈

✨ How to use me?
➡️ Just send a message like:
  • 'I spent 500 on groceries yesterday.'
  • 'Paid 1200 for rent on 5th Jan.'
  • 'Bought a laptop for 250,000 KZT today.'

🔍 I will automatically extract:
✔️ Category
✔️ Amount
✔️ Date

🚀 Commands you can use:
• /report - Get a summary of your expenses
• /help - See how to use the bot

💡 If I am not sure about a category or amount, I will ask you to clarify! 🛠️`

	msgAskAmount      = "❌ Could you enter the amount again?"
	msgInvalidAmount  = "❌ Please enter a valid number for the amount."
	msgAskCategory    = "🤔 I am not sure. Please choose the category of the expense:"
	msgStaleSelection = "❌ This selection is no longer available."
	msgNotYourChoice  = "❌ You can't select this category."
	msgTryAgain       = "❌ Could you try again, something went wrong!"
	msgSaveFailed     = "❌ Your expense could not be saved, please try again."
	msgNothingLogged  = "No expenses logged for this period yet."
)
