package notifier

var ToPlainText = toPlainText
