// quizrag generates quiz questions and answers questions about PDF documents.
package main

import "pdf-quiz-rag/cmd"

func main() {
	cmd.Execute()
}
